package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"conference-webapp/database"
	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// CreateUser inserts a user. The caller supplies the password digest and
// the role set; usernames are unique.
func (r *Repository) CreateUser(ctx context.Context, user model.User) (_ *model.User, err error) {
	defer r.observe("user.create", &err)

	user.Username = strings.TrimSpace(user.Username)
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)
	user.CompanyName = strings.TrimSpace(user.CompanyName)
	if err := user.Validate(); err != nil {
		return nil, err
	}

	n, err := r.store.CountUsersByUsername(ctx, user.Username)
	if err != nil {
		return nil, storeError("USER_READ_FAILED", err)
	}
	if n > 0 {
		return nil, usernameTaken(user.Username)
	}

	user.Id = primitive.NewObjectID()
	user.Created = r.stamp(zeroVersion)
	user.Updated = user.Created
	user.Presentations = []primitive.ObjectID{}
	user.Conferences = []primitive.ObjectID{}

	if err := r.store.InsertUser(ctx, &user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, usernameTaken(user.Username)
		}
		return nil, storeError("USER_INSERT_FAILED", err)
	}
	return &user, nil
}

func usernameTaken(username string) error {
	return oops.
		Code("USERNAME_TAKEN").
		With("username", username).
		Wrapf(apperr.ErrConflict, "username %q already exists", username)
}

func (r *Repository) ListUsers(ctx context.Context) (_ []model.User, err error) {
	defer r.observe("user.list", &err)

	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, storeError("USER_READ_FAILED", err)
	}
	return users, nil
}

func (r *Repository) GetUser(ctx context.Context, userId string) (_ *model.User, err error) {
	defer r.observe("user.get", &err)

	id, err := model.ParseId("user_id", userId)
	if err != nil {
		return nil, err
	}
	return r.loadUser(ctx, id)
}

// FindUserByUsername looks a user up for login.
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.store.FindUserByUsername(ctx, username)
}

// UpdateUser changes the profile fields of a user. Roles and the password
// digest are not patchable.
func (r *Repository) UpdateUser(ctx context.Context, userId string, patch model.UserPatch) (_ *model.User, err error) {
	defer r.observe("user.update", &err)

	id, err := model.ParseId("user_id", userId)
	if err != nil {
		return nil, err
	}
	user, err := r.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	version := user.Updated
	changes, err := patch.Apply(user)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, noChange("user", id)
	}

	res, err := r.store.UpdateUser(ctx, id, version, changes, r.stamp(version))
	if err != nil {
		return nil, storeError("USER_UPDATE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, err := r.loadUser(ctx, id); err != nil {
			return nil, err
		}
		return nil, concurrentModification("user", id)
	}
	return r.loadUser(ctx, id)
}

// DeleteUser removes the user document. Attendee and presenter ids that
// refer to it are left in place and resolve to NotFound when read.
func (r *Repository) DeleteUser(ctx context.Context, userId string) (_ int64, err error) {
	defer r.observe("user.delete", &err)

	id, err := model.ParseId("user_id", userId)
	if err != nil {
		return 0, err
	}
	n, err := r.store.DeleteUser(ctx, id)
	if err != nil {
		return 0, storeError("USER_DELETE_FAILED", err)
	}
	return n, nil
}
