// Package memory is an in-process Store. Units of work run one at a time and
// are rolled back from a snapshot when they fail.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/baharkarakas/broker-ledger/internal/models"
	"github.com/baharkarakas/broker-ledger/internal/repository"
)

type state struct {
	seq          int64
	wallets      map[string]models.Wallet // by user id
	transactions map[string]models.Transaction
	txOrder      map[string]int64
	requests     map[string]models.ServiceRequest
	offers       map[string]models.Offer
	disputes     map[string]models.Dispute
	replies      map[string][]models.DisputeReply // by dispute id
	withdrawals  map[string]models.WithdrawalRequest
	audit        []models.AuditLog
}

func newState() *state {
	return &state{
		wallets:      map[string]models.Wallet{},
		transactions: map[string]models.Transaction{},
		txOrder:      map[string]int64{},
		requests:     map[string]models.ServiceRequest{},
		offers:       map[string]models.Offer{},
		disputes:     map[string]models.Dispute{},
		replies:      map[string][]models.DisputeReply{},
		withdrawals:  map[string]models.WithdrawalRequest{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		wallets:      maps.Clone(s.wallets),
		transactions: maps.Clone(s.transactions),
		txOrder:      maps.Clone(s.txOrder),
		requests:     maps.Clone(s.requests),
		offers:       maps.Clone(s.offers),
		disputes:     maps.Clone(s.disputes),
		replies:      make(map[string][]models.DisputeReply, len(s.replies)),
		withdrawals:  maps.Clone(s.withdrawals),
		audit:        slices.Clone(s.audit),
	}
	for k, v := range s.replies {
		c.replies[k] = slices.Clone(v)
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetNowFunc overrides the clock used for row timestamps.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Read() repository.Repositories { return s.repos(false) }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(s.repos(true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// AuditLogs returns a copy of every audit entry written so far.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.audit)
}

func (s *Store) repos(inTx bool) repository.Repositories {
	v := &view{store: s, inTx: inTx}
	return repository.Repositories{
		Wallets:      &walletsRepo{v},
		Transactions: &transactionsRepo{v},
		Requests:     &requestsRepo{v},
		Offers:       &offersRepo{v},
		Disputes:     &disputesRepo{v},
		Withdrawals:  &withdrawalsRepo{v},
		AuditLogs:    &auditLogsRepo{v},
	}
}

// view gives repositories access to the current state. Inside WithTx the
// store mutex is already held.
type view struct {
	store *Store
	inTx  bool
}

func (v *view) acquire() (*state, func()) {
	if v.inTx {
		return v.store.state, func() {}
	}
	v.store.mu.Lock()
	return v.store.state, v.store.mu.Unlock
}

func (v *view) now() time.Time { return v.store.now() }
