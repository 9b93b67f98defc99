package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"conference-webapp/auth"
	"conference-webapp/errors"
	"conference-webapp/middleware"
	"conference-webapp/model"
)

// TokenCookie is the http-only cookie carrying the session token after login.
const TokenCookie = "token"

func (h *Handlers) Login(c *fiber.Ctx) error {
	type Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var creds = new(Credentials)

	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Error on login request when parse credentials: %v", err))
	}

	user, ok, err := h.credentials.Verify(c.UserContext(), creds.Username, creds.Password)
	if err != nil {
		return errors.Respond(c, err)
	}
	if !ok {
		return errors.RaiseError(c, fiber.StatusUnauthorized, "Invalid credentials", "")
	}

	t, err := h.tokens.Issue(user)
	if err != nil {
		return errors.RaiseInternalServerError(c, err.Error())
	}

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    t,
		Expires:  time.Now().Add(auth.SessionLength),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"status": "success", "message": "Success login", "data": t})
}

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Signup creates a user account. Only an admin may create another admin.
func (h *Handlers) Signup(c *fiber.Ctx) error {
	req := new(signupRequest)
	if err := parseBody(c, req, "signup"); err != nil {
		return err
	}
	if req.Password == "" || req.Password != req.Password2 {
		return errors.RaiseBadRequestError(c, "passwords do not match")
	}
	if req.IsSuperuser {
		if err := auth.Authorize(middleware.PrincipalFrom(c), auth.RoleAuthenticated, auth.RoleAdmin); err != nil {
			return errors.Respond(c, err)
		}
	}

	user, err := h.repo.CreateUser(c.UserContext(), model.User{
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		CompanyName:  req.CompanyName,
		PasswordHash: h.hasher.Hash(req.Password),
		Roles:        model.RolesAtSignup(req.IsSuperuser),
	})
	if err != nil {
		return errors.Respond(c, err)
	}
	return sendJSON(c, fiber.StatusCreated, user)
}
