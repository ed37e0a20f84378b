package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type tags carried in the "type" claim. An access token must never be
// accepted where a refresh token is required, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, signed
	// with an unknown secret, of the wrong type, or bound to another subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigning is returned when a token cannot be signed, e.g. because the
	// secret for its type is unavailable.
	ErrSigning = errors.New("token signing failed")
)

// TokenClaims is the JWT payload: subject, type tag, issued-at, expiry.
type TokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// TokenPayload is the verified content of a token.
type TokenPayload struct {
	Subject   string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider signs and verifies HS256 JWTs. Access and refresh tokens are
// signed under distinct secrets; the secret is selected by the token's type.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
}

// NewTokenProvider returns a TokenProvider with the given secrets. Both
// secrets must be non-empty and should differ; reusing one secret for both
// types collapses the type separation down to the "type" claim alone.
func NewTokenProvider(accessSecret, refreshSecret []byte) (*TokenProvider, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrSigning
	}
	return &TokenProvider{accessSecret: accessSecret, refreshSecret: refreshSecret}, nil
}

// Sign issues a token of the given type for subject, valid for ttl from now.
func (p *TokenProvider) Sign(subject, tokenType string, ttl time.Duration) (string, error) {
	var secret []byte
	switch tokenType {
	case TokenTypeAccess:
		secret = p.accessSecret
	case TokenTypeRefresh:
		secret = p.refreshSecret
	default:
		return "", ErrSigning
	}
	now := time.Now().UTC()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", ErrSigning
	}
	return signed, nil
}

// Verify validates a token of unknown type against an ordered list of
// (secret, expected type) verifiers: the access secret first, then the
// refresh secret. The first secret that validates the signature wins; the
// type check is separate from signature validity, so a correctly-signed token
// carrying the wrong type claim is rejected rather than retried against the
// other secret. If expectedSubject is non-empty the payload subject must
// match it. Expired tokens, unknown signatures, and subject mismatches all
// return ErrInvalidToken. Callers that require a specific type check the
// returned Type field.
func (p *TokenProvider) Verify(tokenString, expectedSubject string) (*TokenPayload, error) {
	verifiers := []struct {
		secret    []byte
		tokenType string
	}{
		{p.accessSecret, TokenTypeAccess},
		{p.refreshSecret, TokenTypeRefresh},
	}
	for _, v := range verifiers {
		claims := &TokenClaims{}
		secret := v.secret
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				// Not signed under this secret; try the next verifier.
				continue
			}
			return nil, ErrInvalidToken
		}
		if !token.Valid {
			return nil, ErrInvalidToken
		}
		// Signature matched this secret: no fallback past this point.
		if claims.TokenType != v.tokenType {
			return nil, ErrInvalidToken
		}
		if expectedSubject != "" && claims.Subject != expectedSubject {
			return nil, ErrInvalidToken
		}
		payload := &TokenPayload{
			Subject: claims.Subject,
			Type:    claims.TokenType,
		}
		if claims.IssuedAt != nil {
			payload.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			payload.ExpiresAt = claims.ExpiresAt.Time
		}
		return payload, nil
	}
	return nil, ErrInvalidToken
}
