package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HasuraNamespace is the claims key GraphQL engines read roles from.
const HasuraNamespace = "https://hasura.io/jwt/claims"

var ErrInvalidToken = errors.New("invalid session token")

type HasuraClaims struct {
	DefaultRole  string   `json:"x-hasura-default-role"`
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
	UserID       string   `json:"x-hasura-user-id"`
	// Older clients read the underscored variant.
	LegacyUserID string `json:"x-hasura-user_id"`
}

// Claims of a session token. Subject is the wallet address.
type Claims struct {
	jwt.RegisteredClaims
	Hasura HasuraClaims `json:"https://hasura.io/jwt/claims"`
}

func (c *Claims) UserID() string {
	return c.Hasura.UserID
}

// Issuer signs and validates HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	role   string
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, role string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		role:   role,
		now:    time.Now,
	}
}

// TTL is the lifetime of issued tokens, shared with the session cookie.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for userID and the time it expires.
func (i *Issuer) Issue(userID, wallet string) (string, time.Time, error) {
	if userID == "" || wallet == "" {
		return "", time.Time{}, fmt.Errorf("issue token: user id and wallet are required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Hasura: HasuraClaims{
			DefaultRole:  i.role,
			AllowedRoles: []string{i.role},
			UserID:       userID,
			LegacyUserID: userID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, algorithm and expiry.
func (i *Issuer) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Hasura.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
