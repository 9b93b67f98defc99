// Package auth implements the credential service (password digests, login
// verification, session tokens) and the role-based authorization policy.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"

	"conference-webapp/database"
	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// DigestSize is the length in bytes of a password digest.
const DigestSize = 20

// Hasher produces deterministic BLAKE2b password digests. With an empty
// pepper the digests match the ones already stored for existing accounts;
// a pepper keys the hash with a server-side secret.
type Hasher struct {
	pepper []byte
}

func NewHasher(pepper string) (*Hasher, error) {
	if len(pepper) > blake2b.Size {
		return nil, fmt.Errorf("password pepper longer than %d bytes", blake2b.Size)
	}
	return &Hasher{pepper: []byte(pepper)}, nil
}

// Hash returns the hex encoded digest of password.
func (h *Hasher) Hash(password string) string {
	// The only error blake2b.New reports is a bad size or key length, both
	// ruled out by NewHasher.
	d, _ := blake2b.New(DigestSize, h.pepper)
	d.Write([]byte(password))
	return hex.EncodeToString(d.Sum(nil))
}

func (h *Hasher) Matches(digest, password string) bool {
	return subtle.ConstantTimeCompare([]byte(digest), []byte(h.Hash(password))) == 1
}

type UserFinder interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type Credentials struct {
	users  UserFinder
	hasher *Hasher
}

func NewCredentials(users UserFinder, hasher *Hasher) *Credentials {
	return &Credentials{users: users, hasher: hasher}
}

// Verify returns the user when username exists and password matches its
// digest. An unknown user and a wrong password both yield ok == false with
// no error, so callers cannot tell them apart.
func (c *Credentials) Verify(ctx context.Context, username, password string) (*model.User, bool, error) {
	user, err := c.users.FindUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNoDocuments) {
		c.hasher.Hash(password)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.
			Code("CREDENTIALS_LOOKUP_FAILED").
			With("username", username).
			Wrap(fmt.Errorf("%w: %w", apperr.ErrStore, err))
	}
	if !c.hasher.Matches(user.PasswordHash, password) {
		return nil, false, nil
	}
	return user, true, nil
}
