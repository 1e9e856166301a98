package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type walletsRepo struct{ v *view }

func (r *walletsRepo) GetOrCreate(_ context.Context, userID, currency string) (models.Wallet, error) {
	st, done := r.v.acquire()
	defer done()
	if w, ok := st.wallets[userID]; ok {
		return w, nil
	}
	now := r.v.now()
	w := models.Wallet{
		ID:               uuid.NewString(),
		UserID:           userID,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		Currency:         currency,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	st.wallets[userID] = w
	return w, nil
}

func (r *walletsRepo) GetOrCreateForUpdate(ctx context.Context, userID, currency string) (models.Wallet, error) {
	return r.GetOrCreate(ctx, userID, currency)
}

func (r *walletsRepo) Get(_ context.Context, userID string) (models.Wallet, error) {
	st, done := r.v.acquire()
	defer done()
	w, ok := st.wallets[userID]
	if !ok {
		return models.Wallet{}, apperr.NotFound("wallet of user %s", userID)
	}
	return w, nil
}

func (r *walletsRepo) Update(_ context.Context, w models.Wallet) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.wallets[w.UserID]; !ok {
		return apperr.NotFound("wallet of user %s", w.UserID)
	}
	st.wallets[w.UserID] = w
	return nil
}

type transactionsRepo struct{ v *view }

func (r *transactionsRepo) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	st, done := r.v.acquire()
	defer done()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := r.v.now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	st.transactions[tx.ID] = tx
	st.txOrder[tx.ID] = st.next()
	return tx, nil
}

func (r *transactionsRepo) GetByID(_ context.Context, id string) (models.Transaction, error) {
	st, done := r.v.acquire()
	defer done()
	tx, ok := st.transactions[id]
	if !ok {
		return models.Transaction{}, apperr.NotFound("transaction %s", id)
	}
	return tx, nil
}

func (r *transactionsRepo) GetForUpdate(ctx context.Context, id string) (models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionsRepo) List(_ context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	st, done := r.v.acquire()
	defer done()
	f = f.Normalize()

	var out []models.Transaction
	for _, tx := range st.transactions {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return st.txOrder[out[i].ID] > st.txOrder[out[j].ID]
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *transactionsRepo) UpdateStatus(_ context.Context, id string, status models.TransactionStatus) error {
	st, done := r.v.acquire()
	defer done()
	tx, ok := st.transactions[id]
	if !ok {
		return apperr.NotFound("transaction %s", id)
	}
	tx.Status = status
	tx.UpdatedAt = r.v.now()
	st.transactions[id] = tx
	return nil
}

type requestsRepo struct{ v *view }

func (r *requestsRepo) Create(_ context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	st, done := r.v.acquire()
	defer done()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := r.v.now()
	req.CreatedAt, req.UpdatedAt = now, now
	st.requests[req.ID] = req
	return req, nil
}

func (r *requestsRepo) GetByID(_ context.Context, id string) (models.ServiceRequest, error) {
	st, done := r.v.acquire()
	defer done()
	req, ok := st.requests[id]
	if !ok {
		return models.ServiceRequest{}, apperr.ErrRequestNotFound
	}
	return req, nil
}

func (r *requestsRepo) GetForUpdate(ctx context.Context, id string) (models.ServiceRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestsRepo) Update(_ context.Context, req models.ServiceRequest) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.requests[req.ID]; !ok {
		return apperr.ErrRequestNotFound
	}
	req.UpdatedAt = r.v.now()
	st.requests[req.ID] = req
	return nil
}

type offersRepo struct{ v *view }

func (r *offersRepo) Create(_ context.Context, o models.Offer) (models.Offer, error) {
	st, done := r.v.acquire()
	defer done()
	for _, existing := range st.offers {
		if existing.RequestID == o.RequestID && existing.ProviderID == o.ProviderID {
			return models.Offer{}, apperr.InvalidState("provider %s already made an offer on request %s", o.ProviderID, o.RequestID)
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := r.v.now()
	o.CreatedAt, o.UpdatedAt = now, now
	st.offers[o.ID] = o
	return o, nil
}

func (r *offersRepo) GetByID(_ context.Context, id string) (models.Offer, error) {
	st, done := r.v.acquire()
	defer done()
	o, ok := st.offers[id]
	if !ok {
		return models.Offer{}, apperr.NotFound("offer %s", id)
	}
	return o, nil
}

func (r *offersRepo) ListByRequest(_ context.Context, requestID string) ([]models.Offer, error) {
	st, done := r.v.acquire()
	defer done()
	var out []models.Offer
	for _, o := range st.offers {
		if o.RequestID == requestID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *offersRepo) Update(_ context.Context, o models.Offer) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.offers[o.ID]; !ok {
		return apperr.NotFound("offer %s", o.ID)
	}
	o.UpdatedAt = r.v.now()
	st.offers[o.ID] = o
	return nil
}

type disputesRepo struct{ v *view }

func (r *disputesRepo) Create(_ context.Context, d models.Dispute) (models.Dispute, error) {
	st, done := r.v.acquire()
	defer done()
	for _, existing := range st.disputes {
		if existing.RequestID == d.RequestID && existing.Status.Active() {
			return models.Dispute{}, apperr.InvalidState("request %s already has an active dispute", d.RequestID)
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := r.v.now()
	d.CreatedAt, d.UpdatedAt = now, now
	d.Replies = nil
	st.disputes[d.ID] = d
	return d, nil
}

func (r *disputesRepo) GetByID(_ context.Context, id string) (models.Dispute, error) {
	st, done := r.v.acquire()
	defer done()
	d, ok := st.disputes[id]
	if !ok {
		return models.Dispute{}, apperr.NotFound("dispute %s", id)
	}
	d.Replies = slices.Clone(st.replies[id])
	return d, nil
}

func (r *disputesRepo) GetForUpdate(ctx context.Context, id string) (models.Dispute, error) {
	return r.GetByID(ctx, id)
}

func (r *disputesRepo) ActiveForRequest(_ context.Context, requestID string) (models.Dispute, error) {
	st, done := r.v.acquire()
	defer done()
	for _, d := range st.disputes {
		if d.RequestID == requestID && d.Status.Active() {
			return d, nil
		}
	}
	return models.Dispute{}, apperr.NotFound("active dispute for request %s", requestID)
}

func (r *disputesRepo) Update(_ context.Context, d models.Dispute) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.disputes[d.ID]; !ok {
		return apperr.NotFound("dispute %s", d.ID)
	}
	d.UpdatedAt = r.v.now()
	d.Replies = nil
	st.disputes[d.ID] = d
	return nil
}

func (r *disputesRepo) AddReply(_ context.Context, reply models.DisputeReply) (models.DisputeReply, error) {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.disputes[reply.DisputeID]; !ok {
		return models.DisputeReply{}, apperr.NotFound("dispute %s", reply.DisputeID)
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.CreatedAt = r.v.now()
	reply.Attachments = slices.Clone(reply.Attachments)
	st.replies[reply.DisputeID] = append(st.replies[reply.DisputeID], reply)
	return reply, nil
}

func (r *disputesRepo) ListReplies(_ context.Context, disputeID string) ([]models.DisputeReply, error) {
	st, done := r.v.acquire()
	defer done()
	return slices.Clone(st.replies[disputeID]), nil
}

type withdrawalsRepo struct{ v *view }

func (r *withdrawalsRepo) Create(_ context.Context, w models.WithdrawalRequest) (models.WithdrawalRequest, error) {
	st, done := r.v.acquire()
	defer done()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := r.v.now()
	w.CreatedAt, w.UpdatedAt = now, now
	st.withdrawals[w.ID] = w
	return w, nil
}

func (r *withdrawalsRepo) GetByID(_ context.Context, id string) (models.WithdrawalRequest, error) {
	st, done := r.v.acquire()
	defer done()
	w, ok := st.withdrawals[id]
	if !ok {
		return models.WithdrawalRequest{}, apperr.NotFound("withdrawal %s", id)
	}
	return w, nil
}

func (r *withdrawalsRepo) GetForUpdate(ctx context.Context, id string) (models.WithdrawalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *withdrawalsRepo) ListByUser(_ context.Context, userID string) ([]models.WithdrawalRequest, error) {
	st, done := r.v.acquire()
	defer done()
	var out []models.WithdrawalRequest
	for _, w := range st.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *withdrawalsRepo) Outstanding(_ context.Context, userID string) (decimal.Decimal, error) {
	st, done := r.v.acquire()
	defer done()
	sum := decimal.Zero
	for _, w := range st.withdrawals {
		if w.UserID == userID && (w.Status == models.WithdrawalPending || w.Status == models.WithdrawalApproved) {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}

func (r *withdrawalsRepo) Update(_ context.Context, w models.WithdrawalRequest) error {
	st, done := r.v.acquire()
	defer done()
	if _, ok := st.withdrawals[w.ID]; !ok {
		return apperr.NotFound("withdrawal %s", w.ID)
	}
	w.UpdatedAt = r.v.now()
	st.withdrawals[w.ID] = w
	return nil
}

type auditLogsRepo struct{ v *view }

func (r *auditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	st, done := r.v.acquire()
	defer done()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = r.v.now()
	st.audit = append(st.audit, l)
	return nil
}
