package repository

import (
	"context"
	"strings"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperr "conference-webapp/errors"
	"conference-webapp/model"
)

// CreateLocation inserts a new location. Names are unique, compared exactly.
func (r *Repository) CreateLocation(ctx context.Context, location model.Location) (_ *model.Location, err error) {
	defer r.observe("location.create", &err)

	location.Name = strings.TrimSpace(location.Name)
	location.City = strings.TrimSpace(location.City)
	if err := location.Validate(); err != nil {
		return nil, err
	}
	if err := r.ensureLocationNameFree(ctx, location.Name); err != nil {
		return nil, err
	}

	location.Id = primitive.NewObjectID()
	location.Created = r.stamp(zeroVersion)
	location.Updated = location.Created
	location.Conferences = []model.Conference{}

	if err := r.store.InsertLocation(ctx, &location); err != nil {
		return nil, storeError("LOCATION_INSERT_FAILED", err)
	}
	return &location, nil
}

func (r *Repository) ensureLocationNameFree(ctx context.Context, name string) error {
	n, err := r.store.CountLocationsByName(ctx, name)
	if err != nil {
		return storeError("LOCATION_READ_FAILED", err)
	}
	if n > 0 {
		return oops.
			Code("LOCATION_NAME_TAKEN").
			With("name", name).
			Wrapf(apperr.ErrConflict, "location %q already exists", name)
	}
	return nil
}

func (r *Repository) ListLocations(ctx context.Context) (_ []model.Location, err error) {
	defer r.observe("location.list", &err)

	locations, err := r.store.ListLocations(ctx)
	if err != nil {
		return nil, storeError("LOCATION_READ_FAILED", err)
	}
	return locations, nil
}

func (r *Repository) GetLocation(ctx context.Context, locationId string) (_ *model.Location, err error) {
	defer r.observe("location.get", &err)

	id, err := model.ParseId("location_id", locationId)
	if err != nil {
		return nil, err
	}
	return r.loadLocation(ctx, id)
}

// UpdateLocation applies patch to the location and returns the stored result.
// A patch that changes nothing fails with ErrNoChange.
func (r *Repository) UpdateLocation(ctx context.Context, locationId string, patch model.LocationPatch) (_ *model.Location, err error) {
	defer r.observe("location.update", &err)

	id, err := model.ParseId("location_id", locationId)
	if err != nil {
		return nil, err
	}
	location, err := r.loadLocation(ctx, id)
	if err != nil {
		return nil, err
	}

	version := location.Updated
	changes, err := patch.Apply(location)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, noChange("location", id)
	}
	if _, renamed := changes["name"]; renamed {
		if err := r.ensureLocationNameFree(ctx, location.Name); err != nil {
			return nil, err
		}
	}

	res, err := r.store.UpdateLocation(ctx, id, version, changes, r.stamp(version))
	if err != nil {
		return nil, storeError("LOCATION_UPDATE_FAILED", err)
	}
	if res.Matched == 0 {
		if _, err := r.loadLocation(ctx, id); err != nil {
			return nil, err
		}
		return nil, concurrentModification("location", id)
	}
	return r.loadLocation(ctx, id)
}

// DeleteLocation removes the location with everything embedded in it and
// returns the number of documents removed.
func (r *Repository) DeleteLocation(ctx context.Context, locationId string) (_ int64, err error) {
	defer r.observe("location.delete", &err)

	id, err := model.ParseId("location_id", locationId)
	if err != nil {
		return 0, err
	}
	n, err := r.store.DeleteLocation(ctx, id)
	if err != nil {
		return 0, storeError("LOCATION_DELETE_FAILED", err)
	}
	return n, nil
}
