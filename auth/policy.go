package auth

import (
	"github.com/samber/lo"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

const (
	RoleAuthenticated = "authenticated"
	RoleAdmin         = string(model.RoleAdmin)
)

// Principal is the caller of a request. The anonymous principal has no id
// and an empty role set.
type Principal struct {
	Id       primitive.ObjectID
	Username string
	Roles    []string
}

func Anonymous() Principal {
	return Principal{Roles: []string{}}
}

// PrincipalFromClaims grants the claimed roles plus "authenticated".
func PrincipalFromClaims(claims *Claims) Principal {
	id, _ := primitive.ObjectIDFromHex(claims.Subject)
	return Principal{
		Id:       id,
		Username: claims.Username,
		Roles:    lo.Uniq(append([]string{RoleAuthenticated}, claims.Roles...)),
	}
}

func (p Principal) Authenticated() bool {
	return lo.Contains(p.Roles, RoleAuthenticated)
}

func (p Principal) Has(role string) bool {
	return lo.Contains(p.Roles, role)
}

// Authorize allows the call when the principal holds every required role.
// An anonymous principal is denied with ErrUnauthenticated, an
// authenticated one with ErrForbidden.
func Authorize(p Principal, required ...string) error {
	missing := lo.Without(required, p.Roles...)
	if len(missing) == 0 {
		return nil
	}
	if !p.Authenticated() {
		return oops.
			Code("UNAUTHENTICATED").
			With("required_roles", required).
			Wrapf(apperr.ErrUnauthenticated, "sign in to perform this operation")
	}
	return oops.
		Code("FORBIDDEN").
		With("username", p.Username).
		With("missing_roles", missing).
		Wrapf(apperr.ErrForbidden, "missing roles %v", missing)
}

// AuthorizeSelf allows an authenticated principal acting on its own user
// id, or one holding the admin role acting on anyone.
func AuthorizeSelf(p Principal, userId primitive.ObjectID) error {
	if err := Authorize(p, RoleAuthenticated); err != nil {
		return err
	}
	if p.Id == userId {
		return nil
	}
	return Authorize(p, RoleAuthenticated, RoleAdmin)
}
