package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"conference-webapp/auth"
	"conference-webapp/metrics"
	"conference-webapp/model"
)

func setupApp(t *testing.T, tokens *auth.Tokens, m *metrics.Metrics) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(Session(tokens, m))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		p := PrincipalFrom(c)
		return c.JSON(fiber.Map{"username": p.Username, "roles": p.Roles})
	})
	app.Get("/members", RequireRoles(auth.RoleAuthenticated), func(c *fiber.Ctx) error {
		return c.SendString("members")
	})
	app.Get("/admin", RequireRoles(auth.RoleAuthenticated, auth.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("admin")
	})
	return app
}

func issue(t *testing.T, tokens *auth.Tokens, elevated bool) string {
	t.Helper()
	token, err := tokens.Issue(&model.User{
		Id:       primitive.NewObjectID(),
		Username: "alice",
		Roles:    model.RolesAtSignup(elevated),
	})
	require.NoError(t, err)
	return token
}

func TestSession(t *testing.T) {
	tokens, err := auth.NewTokens("signing-secret")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	stale, err := auth.NewTokens("signing-secret", auth.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	m := metrics.New()
	app := setupApp(t, tokens, m)

	user := issue(t, tokens, false)
	admin := issue(t, tokens, true)
	expired := issue(t, stale, false)

	tests := []struct {
		description  string
		route        string
		header       string
		expectedCode int
		expectedData string
	}{
		{description: "anonymous on an open route", route: "/whoami", expectedCode: 200},
		{description: "anonymous on a member route", route: "/members", expectedCode: 401},
		{description: "malformed header", route: "/whoami", header: "Token abc", expectedCode: 400, expectedData: "MALFORMED_HEADER"},
		{description: "garbage token", route: "/whoami", header: "Bearer abc", expectedCode: 401, expectedData: "INVALID_SIGNATURE"},
		{description: "expired token", route: "/whoami", header: "Bearer " + expired, expectedCode: 401, expectedData: "EXPIRED"},
		{description: "user on a member route", route: "/members", header: "Bearer " + user, expectedCode: 200},
		{description: "user on an admin route", route: "/admin", header: "Bearer " + user, expectedCode: 403},
		{description: "admin on an admin route", route: "/admin", header: "Bearer " + admin, expectedCode: 200},
	}

	for _, test := range tests {
		req := httptest.NewRequest("GET", test.route, nil)
		if test.header != "" {
			req.Header.Set("Authorization", test.header)
		}

		res, err := app.Test(req, -1)
		require.NoErrorf(t, err, test.description)
		assert.Equalf(t, test.expectedCode, res.StatusCode, test.description)

		if test.expectedData != "" {
			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			var envelope map[string]string
			require.NoError(t, json.Unmarshal(body, &envelope))
			assert.Equalf(t, "error", envelope["status"], test.description)
			assert.Equalf(t, test.expectedData, envelope["data"], test.description)
		}
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("MALFORMED_HEADER")))
}

func TestPrincipalFromToken(t *testing.T) {
	tokens, err := auth.NewTokens("signing-secret")
	require.NoError(t, err)
	app := setupApp(t, tokens, nil)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens, true))
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)

	var body struct {
		Username string   `json:"username"`
		Roles    []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "alice", body.Username)
	assert.ElementsMatch(t, []string{"authenticated", "user", "admin"}, body.Roles)
}
