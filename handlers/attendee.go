package handlers

import (
	"github.com/gofiber/fiber/v2"

	"conference-webapp/auth"
	"conference-webapp/errors"
	"conference-webapp/middleware"
	"conference-webapp/model"
)

type attendeeRequest struct {
	UserId string `json:"user_id"`
}

// GetAttendees lists the attendee ids of one conference, or every attendee
// row across all conferences on /api/attendees/.
func (h *Handlers) GetAttendees(c *fiber.Ctx) error {
	if c.Params("conferenceId") == "" {
		attendees, err := h.repo.AllAttendees(c.UserContext())
		if err != nil {
			return errors.Respond(c, err)
		}
		return sendJSON(c, fiber.StatusOK, fiber.Map{"attendees": attendees})
	}

	attendees, err := h.repo.ListAttendees(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, fiber.Map{"attendees": attendees})
}

func (h *Handlers) GetAttendee(c *fiber.Ctx) error {
	user, err := h.repo.GetAttendee(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"), c.Params("userId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, user)
}

// CreateAttendee registers the caller for the conference. An admin may
// register another user by passing user_id.
func (h *Handlers) CreateAttendee(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	req := &attendeeRequest{}
	if len(c.Body()) > 0 {
		if err := parseBody(c, req, "attendee"); err != nil {
			return err
		}
	}

	userId := principal.Id.Hex()
	if req.UserId != "" {
		id, err := model.ParseId("user_id", req.UserId)
		if err != nil {
			return errors.Respond(c, err)
		}
		if err := auth.AuthorizeSelf(principal, id); err != nil {
			return errors.Respond(c, err)
		}
		userId = req.UserId
	}

	conference, err := h.repo.AddAttendee(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"), userId)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusCreated, conference)
}

// DeleteAttendee unregisters a user. Users may unregister themselves; admins
// may unregister anyone.
func (h *Handlers) DeleteAttendee(c *fiber.Ctx) error {
	userId, err := model.ParseId("user_id", c.Params("userId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	if err := auth.AuthorizeSelf(middleware.PrincipalFrom(c), userId); err != nil {
		return errors.Respond(c, err)
	}

	n, err := h.repo.RemoveAttendee(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"), userId.Hex())
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendDeleted(c, n)
}
