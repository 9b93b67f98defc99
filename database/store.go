// Package database persists locations (with their embedded conferences,
// presentations and attendee ids) and users.
//
// Two implementations of Store exist: MongoStore issues targeted updates
// against a MongoDB deployment, LocalStore keeps the documents in memory and
// optionally mirrors them to a JSON file for local development.
package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"conference-webapp/model"
)

const (
	LocationsCollection = "locations"
	UsersCollection     = "users"
)

// ErrNoDocuments is returned by the Find* lookups when nothing matched.
var ErrNoDocuments = mongo.ErrNoDocuments

// ErrDuplicate is returned when an insert violates a unique name.
var ErrDuplicate = errors.New("duplicate key")

// ErrContended is returned when a document kept changing under an update
// until its retries ran out.
var ErrContended = errors.New("document modified concurrently")

// UpdateResult reports how many documents a filter matched and how many of
// them the update changed. Matched == 0 means the compound filter (including
// any version guard) selected nothing.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// UserList names one of the id lists kept on a user document.
type UserList string

const (
	UserConferences   UserList = "conferences"
	UserPresentations UserList = "presentations"
)

// Store is the set of operations the repository issues.
//
// Mutations of an existing element take the element's last read `updated`
// value as version; a zero version disables the guard. Every mutation stamps
// the element and each of its ancestors with now, or with 1ms past the value
// stored on that level when now is not later, so `updated` never repeats even
// when concurrent writes touch sibling elements. Changes are keyed by the
// element's own document field names.
type Store interface {
	InsertLocation(ctx context.Context, location *model.Location) error
	CountLocationsByName(ctx context.Context, name string) (int64, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
	FindLocation(ctx context.Context, id primitive.ObjectID) (*model.Location, error)
	UpdateLocation(ctx context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error)
	DeleteLocation(ctx context.Context, id primitive.ObjectID) (int64, error)

	PushConference(ctx context.Context, locationId primitive.ObjectID, conference model.Conference, now time.Time) (UpdateResult, error)
	UpdateConference(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error)
	PullConference(ctx context.Context, locationId, conferenceId primitive.ObjectID, now time.Time) (UpdateResult, error)

	// PushPresentation is guarded by the version of the owning conference.
	PushPresentation(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, presentation model.Presentation, now time.Time) (UpdateResult, error)
	UpdatePresentation(ctx context.Context, locationId, conferenceId, presentationId primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error)
	PullPresentation(ctx context.Context, locationId, conferenceId, presentationId primitive.ObjectID, now time.Time) (UpdateResult, error)

	// AddAttendee is guarded by the version of the conference.
	AddAttendee(ctx context.Context, locationId, conferenceId primitive.ObjectID, version time.Time, userId primitive.ObjectID, now time.Time) (UpdateResult, error)
	RemoveAttendee(ctx context.Context, locationId, conferenceId, userId primitive.ObjectID, now time.Time) (UpdateResult, error)
	ListAttendees(ctx context.Context) ([]model.Attendee, error)

	InsertUser(ctx context.Context, user *model.User) error
	CountUsersByUsername(ctx context.Context, username string) (int64, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	FindUser(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, version time.Time, changes bson.M, now time.Time) (UpdateResult, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) (int64, error)
	AddUserReference(ctx context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error)
	RemoveUserReference(ctx context.Context, userId primitive.ObjectID, list UserList, ref primitive.ObjectID, now time.Time) (UpdateResult, error)
}
