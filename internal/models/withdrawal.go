package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalProcessed WithdrawalStatus = "processed"
)

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected, WithdrawalProcessed:
		return true
	}
	return false
}

// Final statuses can never be left again.
func (s WithdrawalStatus) Final() bool {
	return s == WithdrawalRejected || s == WithdrawalProcessed
}

func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	return parseEnum[WithdrawalStatus]("withdrawal status", s)
}

type WithdrawalRequest struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         WithdrawalStatus `json:"status"`
	PaymentMethod  string           `json:"payment_method"`
	PaymentDetails map[string]any   `json:"payment_details,omitempty"`
	AdminNote      *string          `json:"admin_note,omitempty"`
	TransactionID  *string          `json:"transaction_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
