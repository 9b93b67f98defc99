package handlers

import (
	"github.com/gofiber/fiber/v2"

	"conference-webapp/errors"
	"conference-webapp/middleware"
	"conference-webapp/model"
)

type presentationRequest struct {
	Title    string                   `json:"title"`
	Synopsis string                   `json:"synopsis"`
	Status   model.PresentationStatus `json:"status"`
}

func (h *Handlers) GetPresentations(c *fiber.Ctx) error {
	presentations, err := h.repo.ListPresentations(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, fiber.Map{"presentations": presentations})
}

func (h *Handlers) GetPresentation(c *fiber.Ctx) error {
	presentation, err := h.repo.GetPresentation(c.UserContext(),
		c.Params("locationId"), c.Params("conferenceId"), c.Params("presentationId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, presentation)
}

// CreatePresentation submits a presentation presented by the caller.
func (h *Handlers) CreatePresentation(c *fiber.Ctx) error {
	req := new(presentationRequest)
	if err := parseBody(c, req, "presentation"); err != nil {
		return err
	}

	presentation, err := h.repo.CreatePresentation(c.UserContext(), c.Params("locationId"), c.Params("conferenceId"),
		model.Presentation{
			Presenter: middleware.PrincipalFrom(c).Id,
			Title:     req.Title,
			Synopsis:  req.Synopsis,
			Status:    req.Status,
		})
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusCreated, presentation)
}

func (h *Handlers) UpdatePresentation(c *fiber.Ctx) error {
	patch := model.PresentationPatch{}
	if err := parseBody(c, &patch, "presentation"); err != nil {
		return err
	}
	presentation, err := h.repo.UpdatePresentation(c.UserContext(),
		c.Params("locationId"), c.Params("conferenceId"), c.Params("presentationId"), patch)
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusOK, presentation)
}

func (h *Handlers) DeletePresentation(c *fiber.Ctx) error {
	n, err := h.repo.DeletePresentation(c.UserContext(),
		c.Params("locationId"), c.Params("conferenceId"), c.Params("presentationId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendDeleted(c, n)
}
