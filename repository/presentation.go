package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"conference-webapp/database"
	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// CreatePresentation appends presentation to the conference and records its
// id on the presenter's user document. The conference and the presenter must
// both exist.
func (r *Repository) CreatePresentation(ctx context.Context, locationId, conferenceId string, presentation model.Presentation) (_ *model.Presentation, err error) {
	defer r.observe("presentation.create", &err)

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return nil, err
	}
	location, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}

	presentation.Title = strings.TrimSpace(presentation.Title)
	presentation.Synopsis = strings.TrimSpace(presentation.Synopsis)
	presentation.Status = model.PresentationStatus(strings.ToUpper(string(presentation.Status)))
	if presentation.Status == "" {
		presentation.Status = model.StatusPending
	}
	if err := presentation.Validate(); err != nil {
		return nil, err
	}
	if err := conference.AcceptsPresentation(); err != nil {
		return nil, err
	}
	presenter, err := r.loadUser(ctx, presentation.Presenter)
	if err != nil {
		return nil, err
	}

	presentation.Id = newChildId(func(id primitive.ObjectID) bool {
		_, ok := conference.Presentation(id)
		return ok
	})
	presentation.LocationId = lid
	presentation.ConferenceId = cid
	presentation.Created = r.stamp(location.Updated)
	presentation.Updated = presentation.Created
	now := presentation.Created

	res, err := r.store.PushPresentation(ctx, lid, cid, conference.Updated, presentation, now)
	if err != nil {
		return nil, storeError("PRESENTATION_INSERT_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, err := r.loadConference(ctx, lid, cid); err != nil {
			return nil, err
		}
		return nil, concurrentModification("conference", cid)
	}

	pid := presentation.Id
	err = r.compensate(ctx, "presentation.create", presentationFields(lid, cid, pid, presenter.Id),
		func() error {
			return r.addUserReference(ctx, presenter, database.UserPresentations, pid)
		},
		func(ctx context.Context) error {
			_, err := r.store.PullPresentation(ctx, lid, cid, pid, r.stamp(now))
			return err
		})
	if err != nil {
		return nil, err
	}
	return &presentation, nil
}

// ListPresentations returns the presentations of one conference, or of every
// conference when both ids are empty.
func (r *Repository) ListPresentations(ctx context.Context, locationId, conferenceId string) (_ []model.Presentation, err error) {
	defer r.observe("presentation.list", &err)

	if locationId == "" && conferenceId == "" {
		locations, err := r.store.ListLocations(ctx)
		if err != nil {
			return nil, storeError("LOCATION_READ_FAILED", err)
		}
		conferences := lo.FlatMap(locations, func(l model.Location, _ int) []model.Conference {
			return l.Conferences
		})
		return lo.FlatMap(conferences, func(c model.Conference, _ int) []model.Presentation {
			return c.Presentations
		}), nil
	}

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return nil, err
	}
	_, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}
	return conference.Presentations, nil
}

func (r *Repository) GetPresentation(ctx context.Context, locationId, conferenceId, presentationId string) (_ *model.Presentation, err error) {
	defer r.observe("presentation.get", &err)

	lid, cid, pid, err := parsePresentationIds(locationId, conferenceId, presentationId)
	if err != nil {
		return nil, err
	}
	_, _, presentation, err := r.loadPresentation(ctx, lid, cid, pid)
	return presentation, err
}

func (r *Repository) UpdatePresentation(ctx context.Context, locationId, conferenceId, presentationId string, patch model.PresentationPatch) (_ *model.Presentation, err error) {
	defer r.observe("presentation.update", &err)

	lid, cid, pid, err := parsePresentationIds(locationId, conferenceId, presentationId)
	if err != nil {
		return nil, err
	}
	location, _, presentation, err := r.loadPresentation(ctx, lid, cid, pid)
	if err != nil {
		return nil, err
	}

	version := presentation.Updated
	changes, err := patch.Apply(presentation)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, noChange("presentation", pid)
	}

	res, err := r.store.UpdatePresentation(ctx, lid, cid, pid, version, changes, r.stamp(location.Updated))
	if err != nil {
		return nil, storeError("PRESENTATION_UPDATE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, _, err := r.loadPresentation(ctx, lid, cid, pid); err != nil {
			return nil, err
		}
		return nil, concurrentModification("presentation", pid)
	}
	_, _, presentation, err = r.loadPresentation(ctx, lid, cid, pid)
	return presentation, err
}

// DeletePresentation removes the presentation from its conference and from
// the presenter's user document. A presenter that no longer exists is
// skipped.
func (r *Repository) DeletePresentation(ctx context.Context, locationId, conferenceId, presentationId string) (_ int64, err error) {
	defer r.observe("presentation.delete", &err)

	lid, cid, pid, err := parsePresentationIds(locationId, conferenceId, presentationId)
	if err != nil {
		return 0, err
	}
	location, _, presentation, err := r.loadPresentation(ctx, lid, cid, pid)
	if err != nil {
		return 0, err
	}
	removed := *presentation

	now := r.stamp(location.Updated)
	res, err := r.store.PullPresentation(ctx, lid, cid, pid, now)
	if err != nil {
		return 0, storeError("PRESENTATION_DELETE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, _, err := r.loadPresentation(ctx, lid, cid, pid); err != nil {
			return 0, err
		}
		return 0, concurrentModification("presentation", pid)
	}

	err = r.compensate(ctx, "presentation.delete", presentationFields(lid, cid, pid, removed.Presenter),
		func() error {
			return r.removeUserReference(ctx, removed.Presenter, database.UserPresentations, pid)
		},
		func(ctx context.Context) error {
			_, err := r.store.PushPresentation(ctx, lid, cid, zeroVersion, removed, r.stamp(now))
			return err
		})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func presentationFields(lid, cid, pid, userId primitive.ObjectID) []zap.Field {
	return []zap.Field{
		zap.String("location_id", lid.Hex()),
		zap.String("conference_id", cid.Hex()),
		zap.String("presentation_id", pid.Hex()),
		zap.String("user_id", userId.Hex()),
	}
}

func parsePresentationIds(locationId, conferenceId, presentationId string) (lid, cid, pid primitive.ObjectID, err error) {
	if lid, cid, err = parseConferenceIds(locationId, conferenceId); err != nil {
		return
	}
	pid, err = model.ParseId("presentation_id", presentationId)
	return
}

// addUserReference records ref on the user. A user removed since it was
// loaded is reported as NotFound.
func (r *Repository) addUserReference(ctx context.Context, user *model.User, list database.UserList, ref primitive.ObjectID) error {
	res, err := r.store.AddUserReference(ctx, user.Id, list, ref, r.stamp(user.Updated))
	if err != nil {
		return storeError("USER_UPDATE_FAILED", err)
	}
	if res.Matched == 0 {
		return oops.
			Code("USER_NOT_FOUND").
			With("user_id", user.Id.Hex()).
			Wrapf(apperr.ErrNotFound, "user %s does not exist", user.Id.Hex())
	}
	return nil
}

// removeUserReference drops ref from the user. Users are weak references, so
// a user that no longer exists has nothing to drop.
func (r *Repository) removeUserReference(ctx context.Context, userId primitive.ObjectID, list database.UserList, ref primitive.ObjectID) error {
	user, err := r.store.FindUser(ctx, userId)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return storeError("USER_READ_FAILED", err)
	}
	if _, err := r.store.RemoveUserReference(ctx, userId, list, ref, r.stamp(user.Updated)); err != nil {
		return storeError("USER_UPDATE_FAILED", err)
	}
	return nil
}
