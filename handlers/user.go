package handlers

import (
	"github.com/gofiber/fiber/v2"

	"conference-webapp/auth"
	"conference-webapp/errors"
	"conference-webapp/middleware"
	"conference-webapp/model"
)

func (h *Handlers) GetUsers(c *fiber.Ctx) error {
	users, err := h.repo.ListUsers(c.UserContext())
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, fiber.Map{"users": users})
}

func (h *Handlers) GetUser(c *fiber.Ctx) error {
	user, err := h.repo.GetUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, user)
}

// UpdateUser changes a profile. Users may edit themselves; admins anyone.
func (h *Handlers) UpdateUser(c *fiber.Ctx) error {
	id, err := model.ParseId("user_id", c.Params("userId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	if err := auth.AuthorizeSelf(middleware.PrincipalFrom(c), id); err != nil {
		return errors.Respond(c, err)
	}

	patch := model.UserPatch{}
	if err := parseBody(c, &patch, "user"); err != nil {
		return err
	}
	user, err := h.repo.UpdateUser(c.UserContext(), id.Hex(), patch)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, user)
}

func (h *Handlers) DeleteUser(c *fiber.Ctx) error {
	n, err := h.repo.DeleteUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendDeleted(c, n)
}
