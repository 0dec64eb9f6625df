// Package credential mints and verifies the locally signed credentials handed
// to callers after a successful vendor login.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/tracking-bridge/identity"
)

var (
	// ErrEmptySigningKey is returned at construction when no key is configured
	ErrEmptySigningKey = errors.New("credential signing key is empty")

	// ErrInvalidCredential is returned when a credential fails verification
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrCredentialExpired is returned when a credential is past its expiry
	ErrCredentialExpired = errors.New("credential expired")
)

// DefaultValidity is used when Config.Validity is not positive
const DefaultValidity = 2 * time.Hour

// Claims is the payload of an issued credential
type Claims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	RoleName string `json:"roleName"`
	RoleID   int    `json:"roleId"`
}

// Config holds issuer settings
type Config struct {
	SigningKey string
	Issuer     string
	Audience   string
	Validity   time.Duration
}

// Token is a signed credential and its expiry
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 credentials
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	validity time.Duration
	now      func() time.Time
}

// NewIssuer fails when the signing key is empty so a misconfigured process
// never starts.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.SigningKey == "" {
		return nil, ErrEmptySigningKey
	}
	validity := cfg.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Issuer{
		key:      []byte(cfg.SigningKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		validity: validity,
		now:      time.Now,
	}, nil
}

// Issue signs a credential for subject with the given role
func (i *Issuer) Issue(subject string, role identity.Role) (*Token, error) {
	now := i.now()
	jti := uuid.NewString()
	expiresAt := now.Add(i.validity)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    i.issuer,
		},
		Name:     subject,
		RoleName: role.Name,
		RoleID:   role.ID,
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return &Token{Value: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm, expiry, issuer and audience, and
// returns the bearer identity carried by the credential.
func (i *Issuer) Verify(_ context.Context, tokenString string) (*identity.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	raw := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, raw, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	claims := identity.ClaimsFromMap(raw)
	if claims.First(identity.ClaimSubject) == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidCredential)
	}
	return identity.FromClaims(claims), nil
}
