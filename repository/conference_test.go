package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

func TestCreateConference(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, f.location.Id, f.conference.LocationId)
	assert.Empty(t, f.conference.Attendees)
	assert.Empty(t, f.conference.Presentations)

	location, err := f.repo.GetLocation(f.ctx, f.lid())
	require.NoError(t, err)
	assert.True(t, location.Updated.After(f.location.Updated), "adding a conference stamps the location")

	tests := []struct {
		description string
		locationId  string
		conference  model.Conference
		expected    error
	}{
		{
			description: "ends before it starts",
			locationId:  f.lid(),
			conference: model.Conference{
				Name:   "Backwards",
				Starts: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
				Ends:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			expected: apperr.ErrValidation,
		},
		{
			description: "unknown location",
			locationId:  primitive.NewObjectID().Hex(),
			conference:  *f.conference,
			expected:    apperr.ErrNotFound,
		},
		{
			description: "malformed location id",
			locationId:  "nope",
			conference:  *f.conference,
			expected:    apperr.ErrInvalidIdentifier,
		},
	}

	for _, test := range tests {
		_, err := f.repo.CreateConference(f.ctx, test.locationId, test.conference)
		assert.ErrorIsf(t, err, test.expected, test.description)
	}
}

func TestListConferences(t *testing.T) {
	f := newFixture(t)

	dallas, err := f.repo.CreateLocation(f.ctx, model.Location{
		Name: "Dallas Hub", City: "Dallas", State: model.State{Name: "Texas", Abbreviation: "TX"},
	})
	require.NoError(t, err)
	_, err = f.repo.CreateConference(f.ctx, dallas.Id.Hex(), model.Conference{
		Name:   "GoDays",
		Starts: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Ends:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	own, err := f.repo.ListConferences(f.ctx, f.lid())
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "DevCon 2025", own[0].Name)

	all, err := f.repo.ListConferences(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateConference(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.UpdateConference(f.ctx, f.lid(), f.cid(), model.ConferencePatch{Name: ptr("DevCon 2025")})
	assert.ErrorIs(t, err, apperr.ErrNoChange)

	updated, err := f.repo.UpdateConference(f.ctx, f.lid(), f.cid(), model.ConferencePatch{
		Description:  ptr("Three days of talks"),
		MaxAttendees: ptr(100),
	})
	require.NoError(t, err)
	assert.Equal(t, "Three days of talks", updated.Description)
	assert.Equal(t, 100, updated.MaxAttendees)
	assert.True(t, updated.Updated.After(f.conference.Updated))
	assert.Equal(t, f.conference.Created, updated.Created)

	_, err = f.repo.UpdateConference(f.ctx, f.lid(), f.cid(), model.ConferencePatch{
		Ends: ptr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.repo.UpdateConference(f.ctx, f.lid(), primitive.NewObjectID().Hex(), model.ConferencePatch{Name: ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateConferenceConcurrentModification(t *testing.T) {
	f := newFixture(t)

	f.store.interleave("UpdateConference", func() {
		_, err := f.store.Store.UpdateConference(f.ctx, f.location.Id, f.conference.Id, zeroVersion,
			bson.M{"description": "edited elsewhere"}, time.Now().Add(time.Hour))
		require.NoError(t, err)
	})

	_, err := f.repo.UpdateConference(f.ctx, f.lid(), f.cid(), model.ConferencePatch{Description: ptr("mine")})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "edited elsewhere", f.reloadConference(t).Description)
}

func TestDeleteConference(t *testing.T) {
	f := newFixture(t)

	n, err := f.repo.DeleteConference(f.ctx, f.lid(), f.cid())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.repo.DeleteConference(f.ctx, f.lid(), f.cid())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.repo.DeleteConference(f.ctx, f.lid(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	location, err := f.repo.GetLocation(f.ctx, f.lid())
	require.NoError(t, err)
	assert.Empty(t, location.Conferences)
}

func TestSiblingConferenceUpdatesAdvanceLocation(t *testing.T) {
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return frozen }))

	other, err := f.repo.CreateConference(f.ctx, f.lid(), model.Conference{
		Name:   "GoDays",
		Starts: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Ends:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The sibling update lands after DevCon's read and before its write.
	var afterOther time.Time
	f.store.interleave("UpdateConference", func() {
		_, err := f.repo.UpdateConference(f.ctx, f.lid(), other.Id.Hex(), model.ConferencePatch{Description: ptr("elsewhere")})
		require.NoError(t, err)
		l, err := f.repo.GetLocation(f.ctx, f.lid())
		require.NoError(t, err)
		afterOther = l.Updated
	})

	_, err = f.repo.UpdateConference(f.ctx, f.lid(), f.cid(), model.ConferencePatch{Description: ptr("mine")})
	require.NoError(t, err)

	location, err := f.repo.GetLocation(f.ctx, f.lid())
	require.NoError(t, err)
	assert.Truef(t, location.Updated.After(afterOther), "%s is not after %s", location.Updated, afterOther)
	assert.Equal(t, "mine", f.reloadConference(t).Description)
}
