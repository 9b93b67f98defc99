package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"conference-webapp/errors"
	"conference-webapp/model"
)

type locationRequest struct {
	Name      string `json:"name"`
	City      string `json:"city"`
	RoomCount int    `json:"room_count"`
	State     string `json:"state"`
}

func (h *Handlers) GetLocations(c *fiber.Ctx) error {
	locations, err := h.repo.ListLocations(c.UserContext())
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, fiber.Map{"locations": locations})
}

func (h *Handlers) GetLocation(c *fiber.Ctx) error {
	location, err := h.repo.GetLocation(c.UserContext(), c.Params("locationId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, location)
}

// CreateLocation resolves the state against the reference set and looks up
// a picture of the city before storing the location.
func (h *Handlers) CreateLocation(c *fiber.Ctx) error {
	req := new(locationRequest)
	if err := parseBody(c, req, "location"); err != nil {
		return err
	}
	state, ok := model.LookupState(req.State)
	if !ok {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Invalid state: %s", req.State))
	}

	location, err := h.repo.CreateLocation(c.UserContext(), model.Location{
		Name:       req.Name,
		City:       req.City,
		RoomCount:  req.RoomCount,
		State:      state,
		PictureURL: h.photos.Lookup(c.UserContext(), req.City, state.Abbreviation),
	})
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusCreated, location)
}

// UpdateLocation applies a partial update. Moving the location to another
// city or state refreshes its picture.
func (h *Handlers) UpdateLocation(c *fiber.Ctx) error {
	patch := model.LocationPatch{}
	if err := parseBody(c, &patch, "location"); err != nil {
		return err
	}
	patch.Picture = func(city, stateAbbr string) *string {
		return h.photos.Lookup(c.UserContext(), city, stateAbbr)
	}
	location, err := h.repo.UpdateLocation(c.UserContext(), c.Params("locationId"), patch)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, location)
}

func (h *Handlers) DeleteLocation(c *fiber.Ctx) error {
	n, err := h.repo.DeleteLocation(c.UserContext(), c.Params("locationId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendDeleted(c, n)
}
