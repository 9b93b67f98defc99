package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// SessionLength is how long an issued token stays valid.
const SessionLength = 30 * time.Minute

var ErrNoSecret = errors.New("no signing secret configured")

type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

type FailureKind string

const (
	MalformedHeader  FailureKind = "MALFORMED_HEADER"
	InvalidSignature FailureKind = "INVALID_SIGNATURE"
	Expired          FailureKind = "EXPIRED"
)

// Failure is an authentication failure. It matches apperr.ErrUnauthenticated
// under errors.Is.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{apperr.ErrUnauthenticated, f.Err}
}

type Tokens struct {
	secret []byte
	now    func() time.Time
}

type TokenOption func(*Tokens)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(t *Tokens) { t.now = now }
}

func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	t := &Tokens{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for user that expires SessionLength from now.
func (t *Tokens) Issue(user *model.User) (string, error) {
	now := t.now()
	claims := Claims{
		Username: user.Username,
		Roles:    user.RoleNames(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Id.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionLength)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the token signature and expiry and returns its claims.
// Every error returned is a *Failure.
func (t *Tokens) Validate(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &Failure{Kind: Expired, Err: err}
		}
		return nil, &Failure{Kind: InvalidSignature, Err: err}
	}
	if _, err := primitive.ObjectIDFromHex(claims.Subject); err != nil {
		return nil, &Failure{Kind: InvalidSignature, Err: fmt.Errorf("token subject %q: %w", claims.Subject, err)}
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>"; the scheme is matched case-insensitively.
func BearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", &Failure{Kind: MalformedHeader, Err: errors.New("invalid token header, no credentials provided")}
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", &Failure{Kind: MalformedHeader, Err: fmt.Errorf("authorization scheme %s not supported", parts[0])}
	}
	return parts[1], nil
}
