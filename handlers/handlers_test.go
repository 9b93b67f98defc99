package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference-webapp/auth"
	"conference-webapp/database"
	"conference-webapp/handlers"
	"conference-webapp/middleware"
	"conference-webapp/model"
	"conference-webapp/repository"
	"conference-webapp/router"
)

type Test struct {
	description  string
	method       string
	route        string
	token        string
	bodyinput    []byte
	expectedCode int
}

// cityPhoto serves one picture per city.
type cityPhoto struct{}

func (cityPhoto) Lookup(_ context.Context, city, _ string) *string {
	picture := "https://images.example.com/" + strings.ToLower(strings.ReplaceAll(city, " ", "-")) + ".jpg"
	return &picture
}

type server struct {
	app        *fiber.App
	adminToken string
	adminId    string
}

func setupServer(t *testing.T) *server {
	t.Helper()

	store, err := database.NewLocalStore("")
	require.NoError(t, err)
	repo := repository.New(store)
	hasher, err := auth.NewHasher("")
	require.NoError(t, err)
	tokens, err := auth.NewTokens("test-secret")
	require.NoError(t, err)

	app := fiber.New()
	router.SetupRoutes(app,
		handlers.New(repo, hasher, tokens, cityPhoto{}),
		middleware.Session(tokens, nil),
		router.Options{CORSOrigins: "http://localhost:3001"})

	admin, err := repo.CreateUser(context.Background(), model.User{
		Username:     "root",
		Name:         "Root",
		Email:        "root@example.com",
		PasswordHash: hasher.Hash("root-pass"),
		Roles:        model.RolesAtSignup(true),
	})
	require.NoError(t, err)

	s := &server{app: app, adminId: admin.Id.Hex()}
	s.adminToken = s.login(t, "root", "root-pass")
	return s
}

func (s *server) do(t *testing.T, test Test) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(test.method, test.route, bytes.NewBuffer(test.bodyinput))
	require.NoError(t, err)
	if test.bodyinput != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if test.token != "" {
		req.Header.Set("Authorization", "Bearer "+test.token)
	}

	res, err := s.app.Test(req, -1)
	require.NoErrorf(t, err, test.description)
	body, err := io.ReadAll(res.Body)
	require.NoErrorf(t, err, test.description)
	return res, body
}

func (s *server) run(t *testing.T, tests []Test) {
	t.Helper()
	for _, test := range tests {
		res, body := s.do(t, test)
		assert.Equalf(t, test.expectedCode, res.StatusCode, "%s: %s", test.description, body)
	}
}

func (s *server) create(t *testing.T, route, token string, body interface{}) map[string]interface{} {
	t.Helper()
	input, err := json.Marshal(body)
	require.NoError(t, err)
	res, out := s.do(t, Test{description: "create " + route, method: "POST", route: route, token: token, bodyinput: input})
	require.Equalf(t, fiber.StatusCreated, res.StatusCode, "%s", out)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	return doc
}

func (s *server) login(t *testing.T, username, password string) string {
	t.Helper()
	res, body := s.do(t, Test{
		description: "login " + username,
		method:      "POST",
		route:       "/login",
		bodyinput:   []byte(fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)),
	})
	require.Equalf(t, fiber.StatusOK, res.StatusCode, "%s", body)

	var envelope struct {
		Status string `json:"status"`
		Data   string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "success", envelope.Status)
	return envelope.Data
}

func (s *server) signup(t *testing.T, username string) (string, string) {
	t.Helper()
	user := s.create(t, "/signup", "", map[string]interface{}{
		"username":  username,
		"password":  username + "-pass",
		"password2": username + "-pass",
		"name":      username,
		"email":     username + "@example.com",
	})
	return user["_id"].(string), s.login(t, username, username+"-pass")
}

func TestSignupAndLogin(t *testing.T) {
	s := setupServer(t)

	tests := []Test{
		{
			description:  "signup",
			method:       "POST",
			route:        "/signup",
			bodyinput:    []byte(`{"username":"alice","password":"pw","password2":"pw","name":"Alice","email":"alice@example.com"}`),
			expectedCode: 201,
		},
		{
			description:  "signup with a taken username",
			method:       "POST",
			route:        "/signup",
			bodyinput:    []byte(`{"username":"alice","password":"pw","password2":"pw","name":"Alice","email":"alice@example.com"}`),
			expectedCode: 409,
		},
		{
			description:  "signup with mismatched passwords",
			method:       "POST",
			route:        "/signup",
			bodyinput:    []byte(`{"username":"bob","password":"pw","password2":"wp","name":"Bob","email":"bob@example.com"}`),
			expectedCode: 400,
		},
		{
			description:  "anonymous superuser signup",
			method:       "POST",
			route:        "/signup",
			bodyinput:    []byte(`{"username":"mallory","password":"pw","password2":"pw","name":"M","email":"m@example.com","is_superuser":true}`),
			expectedCode: 401,
		},
		{
			description:  "superuser signup by an admin",
			method:       "POST",
			route:        "/signup",
			token:        s.adminToken,
			bodyinput:    []byte(`{"username":"ops","password":"pw","password2":"pw","name":"Ops","email":"ops@example.com","is_superuser":true}`),
			expectedCode: 201,
		},
		{
			description:  "login with a wrong password",
			method:       "POST",
			route:        "/login",
			bodyinput:    []byte(`{"username":"alice","password":"nope"}`),
			expectedCode: 401,
		},
		{
			description:  "login of an unknown user",
			method:       "POST",
			route:        "/login",
			bodyinput:    []byte(`{"username":"nobody","password":"pw"}`),
			expectedCode: 401,
		},
	}
	s.run(t, tests)

	res, body := s.do(t, Test{
		description: "login",
		method:      "POST",
		route:       "/login",
		bodyinput:   []byte(`{"username":"alice","password":"pw"}`),
	})
	require.Equal(t, 200, res.StatusCode)
	assert.NotContains(t, string(body), "password_hash")

	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == handlers.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login sets the session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.Contains(t, string(body), cookie.Value)
}

func TestLocations(t *testing.T) {
	s := setupServer(t)
	_, alice := s.signup(t, "alice")

	location := s.create(t, "/api/locations", s.adminToken, map[string]interface{}{
		"name": "Austin HQ", "city": "Austin", "room_count": 4, "state": "texas",
	})
	assert.Equal(t, map[string]interface{}{"name": "Texas", "abbreviation": "TX"}, location["state"])
	assert.Equal(t, "https://images.example.com/austin.jpg", location["picture_url"])
	route := "/api/locations/" + location["_id"].(string)

	tests := []Test{
		{description: "list locations", method: "GET", route: "/api/locations", expectedCode: 200},
		{description: "get location", method: "GET", route: route, expectedCode: 200},
		{description: "malformed id", method: "GET", route: "/api/locations/bogus", expectedCode: 400},
		{description: "unknown id", method: "GET", route: "/api/locations/650000000000000000000000", expectedCode: 404},
		{
			description:  "anonymous create",
			method:       "POST",
			route:        "/api/locations",
			bodyinput:    []byte(`{"name":"Dallas Hub","city":"Dallas","room_count":1,"state":"TX"}`),
			expectedCode: 401,
		},
		{
			description:  "non-admin create",
			method:       "POST",
			route:        "/api/locations",
			token:        alice,
			bodyinput:    []byte(`{"name":"Dallas Hub","city":"Dallas","room_count":1,"state":"TX"}`),
			expectedCode: 403,
		},
		{
			description:  "unknown state",
			method:       "POST",
			route:        "/api/locations",
			token:        s.adminToken,
			bodyinput:    []byte(`{"name":"Atlantis","city":"Atlantis","room_count":1,"state":"Atlantis"}`),
			expectedCode: 400,
		},
		{
			description:  "duplicate name",
			method:       "POST",
			route:        "/api/locations",
			token:        s.adminToken,
			bodyinput:    []byte(`{"name":"Austin HQ","city":"Austin","room_count":1,"state":"TX"}`),
			expectedCode: 409,
		},
		{
			description:  "update without changes",
			method:       "PUT",
			route:        route,
			token:        s.adminToken,
			bodyinput:    []byte(`{"city":"Austin"}`),
			expectedCode: 304,
		},
		{
			description:  "update",
			method:       "PUT",
			route:        route,
			token:        s.adminToken,
			bodyinput:    []byte(`{"city":"Round Rock","state":"TX"}`),
			expectedCode: 200,
		},
		{description: "states", method: "GET", route: "/api/states", expectedCode: 200},
		{description: "delete", method: "DELETE", route: route, token: s.adminToken, expectedCode: 200},
		{description: "deleted location", method: "GET", route: route, expectedCode: 404},
	}
	s.run(t, tests)

	dallas := s.create(t, "/api/locations", s.adminToken, map[string]interface{}{
		"name": "Dallas Hub", "city": "Dallas", "room_count": 1, "state": "TX",
	})
	assert.Equal(t, "https://images.example.com/dallas.jpg", dallas["picture_url"])
	res, body := s.do(t, Test{
		description: "move location",
		method:      "PUT",
		route:       "/api/locations/" + dallas["_id"].(string),
		token:       s.adminToken,
		bodyinput:   []byte(`{"city":"Fort Worth"}`),
	})
	require.Equalf(t, 200, res.StatusCode, "%s", body)
	var moved map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &moved))
	assert.Equal(t, "https://images.example.com/fort-worth.jpg", moved["picture_url"])
}

func TestConferenceFlow(t *testing.T) {
	s := setupServer(t)
	aliceId, alice := s.signup(t, "alice")
	bobId, bob := s.signup(t, "bob")

	location := s.create(t, "/api/locations", s.adminToken, map[string]interface{}{
		"name": "Austin HQ", "city": "Austin", "room_count": 4, "state": "TX",
	})
	conferences := "/api/locations/" + location["_id"].(string) + "/conferences"

	conference := s.create(t, conferences, s.adminToken, map[string]interface{}{
		"name": "DevCon 2025", "starts": "2025-03-01", "ends": "2025-03-03",
		"max_presentations": 5, "max_attendees": 5,
	})
	assert.Equal(t, location["_id"], conference["location_id"])
	route := conferences + "/" + conference["_id"].(string)

	presentation := s.create(t, route+"/presentations", s.adminToken, map[string]interface{}{
		"title": "Intro to Systems", "synopsis": "Basics",
	})
	assert.Equal(t, s.adminId, presentation["presenter"])
	assert.Equal(t, "PENDING", presentation["status"])
	presentationRoute := route + "/presentations/" + presentation["_id"].(string)

	res, body := s.do(t, Test{description: "location view", method: "GET", route: "/api/locations/" + location["_id"].(string)})
	require.Equal(t, 200, res.StatusCode)
	var view struct {
		Conferences []struct {
			Name          string `json:"name"`
			Presentations []struct {
				Title  string `json:"title"`
				Status string `json:"status"`
			} `json:"presentations"`
		} `json:"conferences"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Conferences, 1)
	assert.Equal(t, "DevCon 2025", view.Conferences[0].Name)
	require.Len(t, view.Conferences[0].Presentations, 1)
	assert.Equal(t, "Intro to Systems", view.Conferences[0].Presentations[0].Title)
	assert.Equal(t, "PENDING", view.Conferences[0].Presentations[0].Status)

	attended := s.create(t, route+"/attendees", alice, nil)
	assert.Equal(t, []interface{}{aliceId}, attended["attendees"])

	tests := []Test{
		{
			description:  "conference ending before it starts",
			method:       "POST",
			route:        conferences,
			token:        s.adminToken,
			bodyinput:    []byte(`{"name":"Backwards","starts":"2025-03-03","ends":"2025-03-01"}`),
			expectedCode: 400,
		},
		{
			description:  "conference with a malformed date",
			method:       "POST",
			route:        conferences,
			token:        s.adminToken,
			bodyinput:    []byte(`{"name":"Someday","starts":"soon","ends":"2025-03-01"}`),
			expectedCode: 400,
		},
		{description: "all conferences", method: "GET", route: "/api/conferences", expectedCode: 200},
		{description: "location conferences", method: "GET", route: conferences, expectedCode: 200},
		{description: "get conference", method: "GET", route: route, expectedCode: 200},
		{
			description:  "update conference",
			method:       "PUT",
			route:        route,
			token:        s.adminToken,
			bodyinput:    []byte(`{"description":"Three days of talks"}`),
			expectedCode: 200,
		},
		{description: "all presentations", method: "GET", route: "/api/presentations", expectedCode: 200},
		{description: "get presentation", method: "GET", route: presentationRoute, expectedCode: 200},
		{
			description:  "non-admin presentation update",
			method:       "PUT",
			route:        presentationRoute,
			token:        alice,
			bodyinput:    []byte(`{"status":"ACCEPTED"}`),
			expectedCode: 403,
		},
		{
			description:  "accept presentation",
			method:       "PUT",
			route:        presentationRoute,
			token:        s.adminToken,
			bodyinput:    []byte(`{"status":"accepted"}`),
			expectedCode: 200,
		},
		{description: "register twice", method: "POST", route: route + "/attendees", token: alice, expectedCode: 409},
		{description: "anonymous registration", method: "POST", route: route + "/attendees", expectedCode: 401},
		{
			description:  "register someone else",
			method:       "POST",
			route:        route + "/attendees",
			token:        alice,
			bodyinput:    []byte(fmt.Sprintf(`{"user_id":%q}`, bobId)),
			expectedCode: 403,
		},
		{
			description:  "admin registers someone else",
			method:       "POST",
			route:        route + "/attendees",
			token:        s.adminToken,
			bodyinput:    []byte(fmt.Sprintf(`{"user_id":%q}`, bobId)),
			expectedCode: 201,
		},
		{description: "list attendees", method: "GET", route: route + "/attendees", expectedCode: 200},
		{description: "all attendees", method: "GET", route: "/api/attendees", expectedCode: 200},
		{description: "get attendee", method: "GET", route: route + "/attendees/" + aliceId, expectedCode: 200},
		{description: "unregister someone else", method: "DELETE", route: route + "/attendees/" + aliceId, token: bob, expectedCode: 403},
		{description: "unregister self", method: "DELETE", route: route + "/attendees/" + aliceId, token: alice, expectedCode: 200},
		{description: "unregistered attendee", method: "GET", route: route + "/attendees/" + aliceId, expectedCode: 404},
		{description: "delete presentation", method: "DELETE", route: presentationRoute, token: s.adminToken, expectedCode: 200},
		{description: "deleted presentation", method: "GET", route: presentationRoute, expectedCode: 404},
		{description: "delete conference", method: "DELETE", route: route, token: s.adminToken, expectedCode: 200},
		{description: "delete conference again", method: "DELETE", route: route, token: s.adminToken, expectedCode: 404},
	}
	s.run(t, tests)
}

func TestUsers(t *testing.T) {
	s := setupServer(t)
	aliceId, alice := s.signup(t, "alice")

	tests := []Test{
		{description: "anonymous list", method: "GET", route: "/api/users", expectedCode: 401},
		{description: "list", method: "GET", route: "/api/users", token: alice, expectedCode: 200},
		{description: "get", method: "GET", route: "/api/users/" + s.adminId, token: alice, expectedCode: 200},
		{
			description:  "edit someone else",
			method:       "PUT",
			route:        "/api/users/" + s.adminId,
			token:        alice,
			bodyinput:    []byte(`{"company_name":"Acme"}`),
			expectedCode: 403,
		},
		{
			description:  "edit self",
			method:       "PUT",
			route:        "/api/users/" + aliceId,
			token:        alice,
			bodyinput:    []byte(`{"company_name":"Acme"}`),
			expectedCode: 200,
		},
		{
			description:  "edit self without changes",
			method:       "PUT",
			route:        "/api/users/" + aliceId,
			token:        alice,
			bodyinput:    []byte(`{"company_name":"Acme"}`),
			expectedCode: 304,
		},
		{description: "non-admin delete", method: "DELETE", route: "/api/users/" + aliceId, token: alice, expectedCode: 403},
		{description: "admin delete", method: "DELETE", route: "/api/users/" + aliceId, token: s.adminToken, expectedCode: 200},
		{description: "deleted user", method: "GET", route: "/api/users/" + aliceId, token: s.adminToken, expectedCode: 404},
	}
	s.run(t, tests)

	res, body := s.do(t, Test{description: "users body", method: "GET", route: "/api/users", token: s.adminToken})
	require.Equal(t, 200, res.StatusCode)
	var list struct {
		Users []map[string]interface{} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "root", list.Users[0]["username"])
	assert.NotContains(t, list.Users[0], "password_hash")
}
