package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baharkarakas/broker-ledger/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type Claims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	Type   string      `json:"typ"` // access|refresh
	jwt.RegisteredClaims
}

func (c *Claims) Actor() models.Actor { return models.Actor{UserID: c.UserID, Role: c.Role} }

func (tm *TokenManager) sign(a models.Actor, typ string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID: a.UserID,
		Role:   a.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GeneratePair issues an access and a refresh token for a.
func (tm *TokenManager) GeneratePair(a models.Actor) (access, refresh string, accessExp time.Time, err error) {
	now := time.Now()
	if access, err = tm.sign(a, TypeAccess, tm.accessSecret, tm.accessTTL, now); err != nil {
		return "", "", time.Time{}, err
	}
	if refresh, err = tm.sign(a, TypeRefresh, tm.refreshSecret, tm.refreshTTL, now); err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, now.Add(tm.accessTTL), nil
}

// ParseAccess verifies an access token and the role it carries.
func (tm *TokenManager) ParseAccess(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, TypeAccess, tm.accessSecret)
}

func (tm *TokenManager) ParseRefresh(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, TypeRefresh, tm.refreshSecret)
}

func (tm *TokenManager) parse(tokenStr, typ string, secret []byte) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) { return secret, nil }, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: %s token used as %s", ErrInvalidToken, claims.Type, typ)
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing user or role", ErrInvalidToken)
	}
	return claims, nil
}
