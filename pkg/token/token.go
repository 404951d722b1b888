// Package token mints and verifies the signed access and refresh tokens used
// by the auth endpoints. Access tokens are stateless; refresh tokens are
// additionally tracked server-side by the session layer.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which secret and lifetime a token is bound to.
type Kind int

const (
	Access Kind = iota
	Refresh
)

// ErrInvalidToken covers malformed tokens, bad signatures and expiry. Callers
// get no finer-grained reason.
var ErrInvalidToken = errors.New("invalid or expired token")

// Config carries the signing secrets and lifetimes. Built once at startup
// from the environment and handed to NewIssuer; nothing here is read ad hoc.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer mints and verifies HS256 tokens for both kinds.
type Issuer struct {
	cfg Config
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: signing secret missing")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{cfg: cfg}, nil
}

type claims struct {
	// Nonce makes two tokens for the same user issued in the same second
	// differ byte-wise; refresh tokens are stored and matched by exact
	// string equality, so issuances must never collide.
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func (i *Issuer) secret(kind Kind) []byte {
	if kind == Refresh {
		return i.cfg.RefreshSecret
	}
	return i.cfg.AccessSecret
}

func (i *Issuer) ttl(kind Kind) time.Duration {
	if kind == Refresh {
		return i.cfg.RefreshTTL
	}
	return i.cfg.AccessTTL
}

// Issue mints a signed token of the given kind for userID.
func (i *Issuer) Issue(userID uint, kind Kind) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl(kind))),
		},
	})
	return t.SignedString(i.secret(kind))
}

// Verify checks signature and expiry for the given kind and returns the
// encoded user id. Any failure is reported as ErrInvalidToken.
func (i *Issuer) Verify(raw string, kind Kind) (uint, error) {
	var c claims
	t, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return i.secret(kind), nil
	})
	if err != nil || !t.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}
