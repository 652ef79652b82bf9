package main

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), h.cost)
	return string(b), err
}

// Verify uses bcrypt's constant-time comparison.
func (h *BcryptHasher) Verify(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// Claims is the token payload: subject is the username.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration, issuer string) *TokenService {
	return &TokenService{secret: secret, ttl: ttl, issuer: issuer, now: time.Now}
}

// IssueToken signs a token for username carrying roles, valid for ttl.
func IssueToken(username string, roles []string, secret []byte, ttl time.Duration) (string, error) {
	token, _, err := NewTokenService(secret, ttl, "").Issue(username, roles)
	return token, err
}

// ValidateToken verifies tokenString against secret and returns the identity it carries.
func ValidateToken(tokenString string, secret []byte) (*AuthenticatedIdentity, error) {
	return NewTokenService(secret, 0, "").Validate(tokenString)
}

// Issue returns the signed token and its expiry.
func (ts *TokenService) Issue(username string, roles []string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, newError(KindInvalidArgument, "username must not be empty", nil)
	}
	if ts.ttl <= 0 {
		return "", time.Time{}, newError(KindInvalidArgument, "token ttl must be positive", nil)
	}
	if len(ts.secret) == 0 {
		return "", time.Time{}, newError(KindInvalidArgument, "signing secret must not be empty", nil)
	}

	now := ts.now()
	claims := &Claims{
		Roles: slices.Clone(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}
	if claims.Roles == nil {
		claims.Roles = []string{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, newError(KindInternal, "failed to sign token", err)
	}
	// exp is truncated to whole seconds; report what the token enforces
	return signed, claims.ExpiresAt.Time, nil
}

// Validate checks structure, then signature, then expiry and claims.
func (ts *TokenService) Validate(tokenString string) (*AuthenticatedIdentity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if len(ts.secret) == 0 {
			return nil, errors.New("no signing secret configured")
		}
		return ts.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, newError(KindInvalidToken, "token has no subject", nil)
	}

	return &AuthenticatedIdentity{Username: claims.Subject, Roles: slices.Clone(claims.Roles)}, nil
}

// classifyTokenError maps parser errors onto token failure kinds. The parser
// only reaches claim validation after the signature verified, so an expired
// token signed with another key is reported as malformed.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindTokenExpired, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newError(KindMalformedToken, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(KindMalformedToken, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindMalformedToken, "token is unverifiable", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return newError(KindInvalidToken, "token is not valid yet", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return newError(KindInvalidToken, "token has invalid issuer", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return newError(KindInvalidToken, "token is missing a required claim", err)
	default:
		return newError(KindInvalidToken, "token is invalid", err)
	}
}
