package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"conference-webapp/errors"
	"conference-webapp/model"
)

// conferenceRequest is the body of conference create and update. Dates are
// given as YYYY-MM-DD; on update every field is optional.
type conferenceRequest struct {
	Name             *string `json:"name"`
	Starts           *string `json:"starts"`
	Ends             *string `json:"ends"`
	Description      *string `json:"description"`
	MaxPresentations *int    `json:"max_presentations"`
	MaxAttendees     *int    `json:"max_attendees"`
}

func (r *conferenceRequest) patch() (model.ConferencePatch, error) {
	patch := model.ConferencePatch{
		Name:             r.Name,
		Description:      r.Description,
		MaxPresentations: r.MaxPresentations,
		MaxAttendees:     r.MaxAttendees,
	}
	var err error
	if patch.Starts, err = parseOptionalDate("starts", r.Starts); err != nil {
		return patch, err
	}
	if patch.Ends, err = parseOptionalDate("ends", r.Ends); err != nil {
		return patch, err
	}
	return patch, nil
}

func (r *conferenceRequest) conference() (model.Conference, error) {
	conference := model.Conference{}
	patch, err := r.patch()
	if err != nil {
		return conference, err
	}
	// Applying the full patch to an empty conference validates every field.
	_, err = patch.Apply(&conference)
	return conference, err
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := model.ParseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handlers) GetConferences(c *fiber.Ctx) error {
	conferences, err := h.repo.ListConferences(c.UserContext(), c.Params("locationId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, fiber.Map{"conferences": conferences})
}

func (h *Handlers) GetConference(c *fiber.Ctx) error {
	conference, err := h.repo.GetConference(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, conference)
}

func (h *Handlers) CreateConference(c *fiber.Ctx) error {
	req := new(conferenceRequest)
	if err := parseBody(c, req, "conference"); err != nil {
		return err
	}
	conference, err := req.conference()
	if err != nil {
		return errors.Respond(c, err)
	}

	created, err := h.repo.CreateConference(c.UserContext(), c.Params("locationId"), conference)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusCreated, created)
}

func (h *Handlers) UpdateConference(c *fiber.Ctx) error {
	req := new(conferenceRequest)
	if err := parseBody(c, req, "conference"); err != nil {
		return err
	}
	patch, err := req.patch()
	if err != nil {
		return errors.Respond(c, err)
	}

	conference, err := h.repo.UpdateConference(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"), patch)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, conference)
}

func (h *Handlers) DeleteConference(c *fiber.Ctx) error {
	n, err := h.repo.DeleteConference(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendDeleted(c, n)
}
