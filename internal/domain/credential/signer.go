package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the claim set carried by a credential token.
type TokenClaims struct {
	// Subject is the agent ID (sub).
	Subject string
	// Audience is the tool ID (aud).
	Audience string
	// ID is the random per-token nonce (jti).
	ID string
	// Scopes are the granted capability strings (scope, space-joined).
	Scopes []string
	// IssuedAt is the issuance time (iat).
	IssuedAt time.Time
	// ExpiresAt is the expiry time (exp).
	ExpiresAt time.Time
}

// TokenSigner signs and verifies credential token claim sets.
type TokenSigner interface {
	// Sign produces a compact signed token carrying the claims.
	Sign(claims TokenClaims) (string, error)
	// Verify checks the token signature and decodes the claims.
	// Returns ErrInvalidToken on any signature or decoding failure.
	// Expiry is NOT enforced here; the vendor decides expiry against
	// its stored credential so validation time stays injectable.
	Verify(token string) (*TokenClaims, error)
}

// jwtClaims is the wire representation of TokenClaims.
type jwtClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// HMACSigner signs tokens as HS256 JWTs with a server-held secret.
type HMACSigner struct {
	secret []byte
	issuer string
}

// NewHMACSigner creates a signer from the given secret key.
// The issuer claim is optional and informational.
func NewHMACSigner(secret []byte, issuer string) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	return &HMACSigner{secret: secret, issuer: issuer}, nil
}

// Sign implements TokenSigner.
func (s *HMACSigner) Sign(claims TokenClaims) (string, error) {
	wire := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{claims.Audience},
			ID:        claims.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Scope: strings.Join(claims.Scopes, " "),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify implements TokenSigner. Claim validation (expiry, audience) is
// intentionally disabled at the parser; the vendor performs those checks
// against its stored credential.
func (s *HMACSigner) Verify(tokenString string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	wire, ok := parsed.Claims.(*jwtClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{
		Subject: wire.Subject,
		ID:      wire.ID,
	}
	if len(wire.Audience) > 0 {
		claims.Audience = wire.Audience[0]
	}
	if wire.Scope != "" {
		claims.Scopes = strings.Fields(wire.Scope)
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

// Compile-time interface verification.
var _ TokenSigner = (*HMACSigner)(nil)
