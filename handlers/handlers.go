package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"conference-webapp/auth"
	"conference-webapp/errors"
	"conference-webapp/model"
	"conference-webapp/photo"
	"conference-webapp/repository"
)

type Handlers struct {
	repo        *repository.Repository
	credentials *auth.Credentials
	hasher      *auth.Hasher
	tokens      *auth.Tokens
	photos      photo.Lookup
}

func New(repo *repository.Repository, hasher *auth.Hasher, tokens *auth.Tokens, photos photo.Lookup) *Handlers {
	if photos == nil {
		photos = photo.Noop{}
	}
	return &Handlers{
		repo:        repo,
		credentials: auth.NewCredentials(repo, hasher),
		hasher:      hasher,
		tokens:      tokens,
		photos:      photos,
	}
}

func sendJSON(c *fiber.Ctx, status int, v interface{}) error {
	body, err := json.MarshalIndent(v, "", "	")
	if err != nil {
		return errors.RaiseInternalServerError(c, fmt.Sprintf("json serialization error: %v", err))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Status(status).Send(body)
}

func sendDeleted(c *fiber.Ctx, n int64) error {
	return sendJSON(c, fiber.StatusOK, fiber.Map{"deleted": n > 0})
}

func parseBody(c *fiber.Ctx, out interface{}, what string) error {
	if err := c.BodyParser(out); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable %s parameters: %v", what, err))
	}
	return nil
}

func (h *Handlers) ListStates(c *fiber.Ctx) error {
	return sendJSON(c, fiber.StatusOK, fiber.Map{"states": model.States})
}
