// Package repository implements the operations on locations, their embedded
// conferences, presentations and attendees, and on users.
//
// Every mutation follows the same discipline: load the aggregate, locate
// the target by compound id, apply and validate the change in memory, then
// issue one targeted store update guarded by the version that was read. A
// guard that matches nothing is resolved by reloading: the target is either
// gone (NotFound) or was modified concurrently (Conflict).
//
// Adding or removing an attendee and creating or deleting a presentation
// touch a location document and a user document. Those writes are ordered
// location first; when the user write fails the location write is rolled
// back, and a rollback that cannot be completed is reported as
// ErrInconsistent.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"conference-webapp/database"
	apperr "conference-webapp/errors"
	"conference-webapp/metrics"
	"conference-webapp/model"
)

// zeroVersion disables the version guard of a store update. Only rollbacks
// use it.
var zeroVersion time.Time

type Repository struct {
	store   database.Store
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	backoff func() retry.Backoff
}

type Option func(*Repository)

func WithLogger(log *zap.Logger) Option {
	return func(r *Repository) { r.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithRollbackBackoff sets the retry schedule of compensating writes.
func WithRollbackBackoff(backoff func() retry.Backoff) Option {
	return func(r *Repository) { r.backoff = backoff }
}

func New(store database.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.NewExponential(50*time.Millisecond))
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) stamp(prev time.Time) time.Time {
	return model.Stamp(r.now(), prev)
}

func (r *Repository) observe(op string, err *error) {
	r.metrics.Operation(op, *err)
}

// storeError classifies an error returned by the store.
func storeError(code string, err error) error {
	if errors.Is(err, database.ErrDuplicate) || errors.Is(err, database.ErrContended) {
		return oops.Code(code).Wrap(fmt.Errorf("%w: %w", apperr.ErrConflict, err))
	}
	return oops.Code(code).Wrap(fmt.Errorf("%w: %w", apperr.ErrStore, err))
}

func concurrentModification(what string, id primitive.ObjectID) error {
	return oops.
		Code("CONCURRENT_MODIFICATION").
		With("id", id.Hex()).
		Wrapf(apperr.ErrConflict, "%s %s was modified concurrently, reload and retry", what, id.Hex())
}

func noChange(what string, id primitive.ObjectID) error {
	return oops.
		Code("NO_CHANGE").
		With("id", id.Hex()).
		Wrapf(apperr.ErrNoChange, "%s %s", what, id.Hex())
}

func (r *Repository) loadLocation(ctx context.Context, locationId primitive.ObjectID) (*model.Location, error) {
	location, err := r.store.FindLocation(ctx, locationId)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, oops.
			Code("LOCATION_NOT_FOUND").
			With("location_id", locationId.Hex()).
			Wrapf(apperr.ErrNotFound, "location %s does not exist", locationId.Hex())
	}
	if err != nil {
		return nil, storeError("LOCATION_READ_FAILED", err)
	}
	return location, nil
}

func (r *Repository) loadConference(ctx context.Context, locationId, conferenceId primitive.ObjectID) (*model.Location, *model.Conference, error) {
	location, err := r.loadLocation(ctx, locationId)
	if err != nil {
		return nil, nil, err
	}
	conference, ok := location.Conference(conferenceId)
	if !ok {
		return nil, nil, oops.
			Code("CONFERENCE_NOT_FOUND").
			With("location_id", locationId.Hex()).
			With("conference_id", conferenceId.Hex()).
			Wrapf(apperr.ErrNotFound, "conference %s does not exist in location %s", conferenceId.Hex(), locationId.Hex())
	}
	return location, conference, nil
}

func (r *Repository) loadPresentation(ctx context.Context, locationId, conferenceId, presentationId primitive.ObjectID) (*model.Location, *model.Conference, *model.Presentation, error) {
	location, conference, err := r.loadConference(ctx, locationId, conferenceId)
	if err != nil {
		return nil, nil, nil, err
	}
	presentation, ok := conference.Presentation(presentationId)
	if !ok {
		return nil, nil, nil, oops.
			Code("PRESENTATION_NOT_FOUND").
			With("location_id", locationId.Hex()).
			With("conference_id", conferenceId.Hex()).
			With("presentation_id", presentationId.Hex()).
			Wrapf(apperr.ErrNotFound, "presentation %s does not exist in conference %s", presentationId.Hex(), conferenceId.Hex())
	}
	return location, conference, presentation, nil
}

func (r *Repository) loadUser(ctx context.Context, userId primitive.ObjectID) (*model.User, error) {
	user, err := r.store.FindUser(ctx, userId)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, oops.
			Code("USER_NOT_FOUND").
			With("user_id", userId.Hex()).
			Wrapf(apperr.ErrNotFound, "user %s does not exist", userId.Hex())
	}
	if err != nil {
		return nil, storeError("USER_READ_FAILED", err)
	}
	return user, nil
}

// newChildId returns an id not yet used by any sibling.
func newChildId(taken func(primitive.ObjectID) bool) primitive.ObjectID {
	for {
		if id := primitive.NewObjectID(); !taken(id) {
			return id
		}
	}
}

// compensate completes a two-document write whose first half already
// succeeded. It runs second; if second fails, undo is retried with backoff
// until it succeeds or the schedule is exhausted. The returned error is
// second's error when the rollback succeeded and ErrInconsistent otherwise.
func (r *Repository) compensate(ctx context.Context, op string, fields []zap.Field, second func() error, undo func(context.Context) error) error {
	err := second()
	if err == nil {
		return nil
	}

	// A rollback must not be abandoned because the caller went away.
	rollbackCtx := context.WithoutCancel(ctx)
	rollbackErr := retry.Do(rollbackCtx, r.backoff(), func(ctx context.Context) error {
		if err := undo(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if rollbackErr != nil {
		r.metrics.Compensation(op, "failed")
		r.log.Error("two-document write left inconsistent",
			append(fields,
				zap.String("op", op),
				zap.NamedError("write_error", err),
				zap.NamedError("rollback_error", rollbackErr))...)
		return oops.
			Code("DUAL_WRITE_INCONSISTENT").
			With("op", op).
			Wrap(fmt.Errorf("%w: %w (rollback: %w)", apperr.ErrInconsistent, err, rollbackErr))
	}

	r.metrics.Compensation(op, "rolled_back")
	r.log.Warn("rolled back two-document write",
		append(fields, zap.String("op", op), zap.Error(err))...)
	return err
}
