package models

import (
	"strings"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
)

type enum interface {
	~string
	Valid() bool
}

// parseEnum rejects unknown values at the boundary; stored and wire values
// are always lowercase.
func parseEnum[T enum](field, raw string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if !v.Valid() {
		var zero T
		return zero, apperr.Validation("unknown %s %q", field, raw)
	}
	return v, nil
}

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) { return parseEnum[Role]("role", s) }

// Actor is the verified caller handed over by the authentication boundary.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (a Actor) IsArbitrator() bool { return a.Role == RoleAdmin }
