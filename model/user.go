package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RolesAtSignup is the role set assigned when a user is created. Roles are
// not changed afterwards.
func RolesAtSignup(elevated bool) []Role {
	roles := []Role{RoleUser}
	if elevated {
		roles = append(roles, RoleAdmin)
	}
	return roles
}

type User struct {
	Id            primitive.ObjectID   `json:"_id" bson:"_id"`
	Created       time.Time            `json:"created" bson:"created"`
	Updated       time.Time            `json:"updated" bson:"updated"`
	Username      string               `json:"username" bson:"username"`
	Name          string               `json:"name" bson:"name"`
	Email         string               `json:"email" bson:"email"`
	CompanyName   string               `json:"company_name" bson:"company_name"`
	PasswordHash  string               `json:"-" bson:"password_hash"`
	Roles         []Role               `json:"roles" bson:"roles"`
	Presentations []primitive.ObjectID `json:"presentations" bson:"presentations"`
	Conferences   []primitive.ObjectID `json:"conferences" bson:"conferences"`
}

func (u *User) Validate() error {
	if err := required("username", u.Username); err != nil {
		return err
	}
	if strings.ContainsAny(u.Username, " \t\n") {
		return invalid("username", "username must not contain whitespace")
	}
	if err := required("name", u.Name); err != nil {
		return err
	}
	if err := validEmail(u.Email); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return invalid("password_hash", "password digest is required")
	}
	if len(u.Roles) == 0 {
		return invalid("roles", "at least one role is required")
	}
	return nil
}

func (u *User) HasRole(role Role) bool {
	return lo.Contains(u.Roles, role)
}

func (u *User) RoleNames() []string {
	return lo.Map(u.Roles, func(r Role, _ int) string { return string(r) })
}

type UserPatch struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	CompanyName *string `json:"company_name"`
}

func (p UserPatch) Apply(u *User) (bson.M, error) {
	changes := bson.M{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := required("name", name); err != nil {
			return nil, err
		}
		if name != u.Name {
			u.Name = name
			changes["name"] = name
		}
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := validEmail(email); err != nil {
			return nil, err
		}
		if email != u.Email {
			u.Email = email
			changes["email"] = email
		}
	}
	if p.CompanyName != nil {
		if company := strings.TrimSpace(*p.CompanyName); company != u.CompanyName {
			u.CompanyName = company
			changes["company_name"] = company
		}
	}
	return changes, nil
}

func validEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "invalid email %q", email)
	}
	return nil
}

// Attendee is one row of the flattened attendee listing.
type Attendee struct {
	UserId       primitive.ObjectID `json:"user_id" bson:"user_id"`
	ConferenceId primitive.ObjectID `json:"conference_id" bson:"conference_id"`
	LocationId   primitive.ObjectID `json:"location_id" bson:"location_id"`
}
