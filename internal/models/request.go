package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCanceled   RequestStatus = "canceled"
	RequestDisputed   RequestStatus = "disputed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestOpen, RequestInProgress, RequestCompleted, RequestCanceled, RequestDisputed:
		return true
	}
	return false
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	return parseEnum[RequestStatus]("request status", s)
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestOpen:       {RequestInProgress, RequestCanceled},
	RequestInProgress: {RequestCompleted, RequestDisputed, RequestCanceled},
	RequestDisputed:   {RequestCompleted, RequestCanceled, RequestInProgress},
}

// CanTransition reports whether the request lifecycle permits from -> to.
// in_progress -> canceled is reachable only through an escrow refund.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ServiceRequest struct {
	ID           string              `json:"id"`
	ClientID     string              `json:"client_id"`
	CategoryID   string              `json:"category_id"`
	Description  string              `json:"description"`
	Budget       decimal.NullDecimal `json:"budget"`
	Status       RequestStatus       `json:"status"`
	EscrowAmount decimal.NullDecimal `json:"escrow_amount"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferAccepted, OfferRejected:
		return true
	}
	return false
}

func ParseOfferStatus(s string) (OfferStatus, error) {
	return parseEnum[OfferStatus]("offer status", s)
}

type Offer struct {
	ID            string              `json:"id"`
	RequestID     string              `json:"request_id"`
	ProviderID    string              `json:"provider_id"`
	ProposedPrice decimal.Decimal     `json:"proposed_price"`
	FinalPrice    decimal.NullDecimal `json:"final_price"`
	DurationDays  int                 `json:"duration_days"`
	Status        OfferStatus         `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Price is what the client pays: the adjusted final price when set,
// otherwise the provider's proposal.
func (o Offer) Price() decimal.Decimal {
	if o.FinalPrice.Valid {
		return o.FinalPrice.Decimal
	}
	return o.ProposedPrice
}
