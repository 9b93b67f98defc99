package repository

import (
	"context"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"conference-webapp/database"
	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// AddAttendee registers the user for the conference: the user id is added to
// the conference's attendees and the conference id to the user's
// conferences. It returns the updated conference.
func (r *Repository) AddAttendee(ctx context.Context, locationId, conferenceId, userId string) (_ *model.Conference, err error) {
	defer r.observe("attendee.create", &err)

	lid, cid, uid, err := parseAttendeeIds(locationId, conferenceId, userId)
	if err != nil {
		return nil, err
	}
	location, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}
	user, err := r.loadUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if conference.HasAttendee(uid) {
		return nil, oops.
			Code("ALREADY_ATTENDING").
			With("conference_id", cid.Hex()).
			With("user_id", uid.Hex()).
			Wrapf(apperr.ErrConflict, "user %s already attends conference %s", user.Username, conference.Name)
	}
	if err := conference.AcceptsAttendee(); err != nil {
		return nil, err
	}

	now := r.stamp(location.Updated)
	res, err := r.store.AddAttendee(ctx, lid, cid, conference.Updated, uid, now)
	if err != nil {
		return nil, storeError("ATTENDEE_INSERT_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, err := r.loadConference(ctx, lid, cid); err != nil {
			return nil, err
		}
		return nil, concurrentModification("conference", cid)
	}

	err = r.compensate(ctx, "attendee.create", attendeeFields(lid, cid, uid),
		func() error {
			return r.addUserReference(ctx, user, database.UserConferences, cid)
		},
		func(ctx context.Context) error {
			_, err := r.store.RemoveAttendee(ctx, lid, cid, uid, r.stamp(now))
			return err
		})
	if err != nil {
		return nil, err
	}

	_, conference, err = r.loadConference(ctx, lid, cid)
	return conference, err
}

// RemoveAttendee unregisters the user from the conference on both sides of
// the relationship and returns the number of registrations removed.
func (r *Repository) RemoveAttendee(ctx context.Context, locationId, conferenceId, userId string) (_ int64, err error) {
	defer r.observe("attendee.delete", &err)

	lid, cid, uid, err := parseAttendeeIds(locationId, conferenceId, userId)
	if err != nil {
		return 0, err
	}
	location, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return 0, err
	}
	if !conference.HasAttendee(uid) {
		return 0, notAttending(cid, uid)
	}

	now := r.stamp(location.Updated)
	res, err := r.store.RemoveAttendee(ctx, lid, cid, uid, now)
	if err != nil {
		return 0, storeError("ATTENDEE_DELETE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, _, err := r.loadConference(ctx, lid, cid); err != nil {
			return 0, err
		}
		return 0, notAttending(cid, uid)
	}

	err = r.compensate(ctx, "attendee.delete", attendeeFields(lid, cid, uid),
		func() error {
			return r.removeUserReference(ctx, uid, database.UserConferences, cid)
		},
		func(ctx context.Context) error {
			_, err := r.store.AddAttendee(ctx, lid, cid, zeroVersion, uid, r.stamp(now))
			return err
		})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// ListAttendees returns the ids of the users attending the conference.
func (r *Repository) ListAttendees(ctx context.Context, locationId, conferenceId string) (_ []primitive.ObjectID, err error) {
	defer r.observe("attendee.list", &err)

	lid, cid, err := parseConferenceIds(locationId, conferenceId)
	if err != nil {
		return nil, err
	}
	_, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}
	return conference.Attendees, nil
}

// GetAttendee returns the user attending the conference. An attendee id
// whose user no longer exists is reported as NotFound.
func (r *Repository) GetAttendee(ctx context.Context, locationId, conferenceId, userId string) (_ *model.User, err error) {
	defer r.observe("attendee.get", &err)

	lid, cid, uid, err := parseAttendeeIds(locationId, conferenceId, userId)
	if err != nil {
		return nil, err
	}
	_, conference, err := r.loadConference(ctx, lid, cid)
	if err != nil {
		return nil, err
	}
	if !conference.HasAttendee(uid) {
		return nil, notAttending(cid, uid)
	}
	return r.loadUser(ctx, uid)
}

// AllAttendees flattens the attendees of every conference.
func (r *Repository) AllAttendees(ctx context.Context) (_ []model.Attendee, err error) {
	defer r.observe("attendee.all", &err)

	attendees, err := r.store.ListAttendees(ctx)
	if err != nil {
		return nil, storeError("ATTENDEE_READ_FAILED", err)
	}
	return attendees, nil
}

func notAttending(cid, uid primitive.ObjectID) error {
	return oops.
		Code("ATTENDEE_NOT_FOUND").
		With("conference_id", cid.Hex()).
		With("user_id", uid.Hex()).
		Wrapf(apperr.ErrNotFound, "user %s does not attend conference %s", uid.Hex(), cid.Hex())
}

func attendeeFields(lid, cid, uid primitive.ObjectID) []zap.Field {
	return []zap.Field{
		zap.String("location_id", lid.Hex()),
		zap.String("conference_id", cid.Hex()),
		zap.String("user_id", uid.Hex()),
	}
}

func parseAttendeeIds(locationId, conferenceId, userId string) (lid, cid, uid primitive.ObjectID, err error) {
	if lid, cid, err = parseConferenceIds(locationId, conferenceId); err != nil {
		return
	}
	uid, err = model.ParseId("user_id", userId)
	return
}
