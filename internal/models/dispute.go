package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DisputeStatus string

const (
	DisputeOpen             DisputeStatus = "open"
	DisputeInReview         DisputeStatus = "in_review"
	DisputeResolvedClient   DisputeStatus = "resolved_client"
	DisputeResolvedProvider DisputeStatus = "resolved_provider"
	DisputeResolvedPartial  DisputeStatus = "resolved_partial"
	DisputeCanceled         DisputeStatus = "canceled"
)

func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeOpen, DisputeInReview, DisputeResolvedClient,
		DisputeResolvedProvider, DisputeResolvedPartial, DisputeCanceled:
		return true
	}
	return false
}

// Active disputes still accept replies and block a second dispute.
func (s DisputeStatus) Active() bool { return s == DisputeOpen || s == DisputeInReview }

// IsResolution reports whether s is one of the arbitrator outcomes.
func (s DisputeStatus) IsResolution() bool {
	switch s {
	case DisputeResolvedClient, DisputeResolvedProvider, DisputeResolvedPartial, DisputeCanceled:
		return true
	}
	return false
}

func ParseDisputeStatus(s string) (DisputeStatus, error) {
	return parseEnum[DisputeStatus]("dispute status", s)
}

type Dispute struct {
	ID            string              `json:"id"`
	RequestID     string              `json:"request_id"`
	ClientID      string              `json:"client_id"`
	ProviderID    string              `json:"provider_id"`
	OpenedBy      string              `json:"opened_by"`
	Reason        string              `json:"reason"`
	Status        DisputeStatus       `json:"status"`
	Resolution    string              `json:"resolution,omitempty"`
	RefundAmount  decimal.NullDecimal `json:"refund_amount"`
	RefundPercent decimal.NullDecimal `json:"refund_percent"`
	ResolvedBy    *string             `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
	Replies       []DisputeReply      `json:"replies,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// IsParty reports whether userID is the client or provider of the dispute.
func (d Dispute) IsParty(userID string) bool {
	return userID == d.ClientID || userID == d.ProviderID
}

type DisputeReply struct {
	ID          string    `json:"id"`
	DisputeID   string    `json:"dispute_id"`
	AuthorID    string    `json:"author_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
