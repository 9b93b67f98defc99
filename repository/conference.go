package repository

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// CreateConference appends conference to the location's conference list.
func (r *Repository) CreateConference(ctx context.Context, locationId string, conference model.Conference) (_ *model.Conference, err error) {
	defer r.observe("conference.create", &err)

	lid, err := model.ParseId("location_id", locationId)
	if err != nil {
		return nil, err
	}
	location, err := r.loadLocation(ctx, lid)
	if err != nil {
		return nil, err
	}

	conference.Name = strings.TrimSpace(conference.Name)
	conference.Attendees = []primitive.ObjectID{}
	conference.Presentations = []model.Presentation{}
	if err := conference.Validate(); err != nil {
		return nil, err
	}

	conference.Id = newChildId(func(id primitive.ObjectID) bool {
		_, ok := location.Conference(id)
		return ok
	})
	conference.LocationId = lid
	conference.Created = r.stamp(location.Updated)
	conference.Updated = conference.Created

	res, err := r.store.PushConference(ctx, lid, conference, conference.Created)
	if err != nil {
		return nil, storeError("CONFERENCE_INSERT_FAILED", err)
	}
	if res.Matched == 0 {
		return nil, oops.
			Code("LOCATION_NOT_FOUND").
			With("location_id", lid.Hex()).
			Wrapf(apperr.ErrNotFound, "location %s does not exist", lid.Hex())
	}
	return &conference, nil
}

// ListConferences returns the conferences of one location, or of every
// location when locationId is empty.
func (r *Repository) ListConferences(ctx context.Context, locationId string) (_ []model.Conference, err error) {
	defer r.observe("conference.list", &err)

	if locationId == "" {
		locations, err := r.store.ListLocations(ctx)
		if err != nil {
			return nil, storeError("LOCATION_READ_FAILED", err)
		}
		return lo.FlatMap(locations, func(l model.Location, _ int) []model.Conference {
			return l.Conferences
		}), nil
	}

	lid, err := model.ParseId("location_id", locationId)
	if err != nil {
		return nil, err
	}
	location, err := r.loadLocation(ctx, lid)
	if err != nil {
		return nil, err
	}
	return location.Conferences, nil
}

func (r *Repository) GetConference(ctx context.Context, locationId, conferenceId string) (_ *model.Conference, err error) {
	defer r.observe("conference.get", &err)

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return nil, err
	}
	_, conference, err := r.loadConference(ctx, lid, cid)
	return conference, err
}

func (r *Repository) UpdateConference(ctx context.Context, locationId, conferenceId string, patch model.ConferencePatch) (_ *model.Conference, err error) {
	defer r.observe("conference.update", &err)

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return nil, err
	}
	location, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}

	version := conference.Updated
	changes, err := patch.Apply(conference)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, noChange("conference", cid)
	}

	res, err := r.store.UpdateConference(ctx, lid, cid, version, changes, r.stamp(location.Updated))
	if err != nil {
		return nil, storeError("CONFERENCE_UPDATE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, err := r.loadConference(ctx, lid, cid); err != nil {
			return nil, err
		}
		return nil, concurrentModification("conference", cid)
	}
	_, conference, err = r.loadConference(ctx, lid, cid)
	return conference, err
}

// DeleteConference removes the conference from its location and returns the
// number of conferences removed.
func (r *Repository) DeleteConference(ctx context.Context, locationId, conferenceId string) (_ int64, err error) {
	defer r.observe("conference.delete", &err)

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return 0, err
	}
	location, _, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return 0, err
	}

	res, err := r.store.PullConference(ctx, lid, cid, r.stamp(location.Updated))
	if err != nil {
		return 0, storeError("CONFERENCE_DELETE_FAILED", err)
	}
	if res.Matched == 0 {
		// Removed between the read and the pull.
		if _, _, err := r.loadConference(ctx, lid, cid); err != nil {
			return 0, err
		}
		return 0, concurrentModification("conference", cid)
	}
	return 1, nil
}

func parseConferenceIds(locationId, conferenceId string) (primitive.ObjectID, primitive.ObjectID, error) {
	lid, err := model.ParseId("location_id", locationId)
	if err != nil {
		return lid, primitive.NilObjectID, err
	}
	cid, err := model.ParseId("conference_id", conferenceId)
	return lid, cid, err
}
