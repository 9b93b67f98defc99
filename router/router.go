package router

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"conference-webapp/auth"
	"conference-webapp/handlers"
	"conference-webapp/middleware"
)

type Options struct {
	CORSOrigins string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

func SetupRoutes(app *fiber.App, h *handlers.Handlers, session fiber.Handler, opts Options) {
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	// Credentialed requests are only allowed from explicit origins.
	root := app.Group("/", cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: origins != "*",
	}))
	if opts.AccessLog {
		root.Use(logger.New())
	}
	root.Use(session)

	admin := middleware.RequireRoles(auth.RoleAuthenticated, auth.RoleAdmin)
	authenticated := middleware.RequireRoles(auth.RoleAuthenticated)

	//Auth
	root.Post("/signup", h.Signup)
	root.Post("/login", h.Login)

	api := root.Group("/api")
	api.Get("/states", h.ListStates)

	//Location
	locations := api.Group("/locations")
	locations.Get("/", h.GetLocations)
	locations.Post("/", admin, h.CreateLocation)
	locations.Get("/:locationId", h.GetLocation)
	locations.Put("/:locationId", admin, h.UpdateLocation)
	locations.Delete("/:locationId", admin, h.DeleteLocation)

	//Conference
	api.Get("/conferences", h.GetConferences)
	conferences := locations.Group("/:locationId/conferences")
	conferences.Get("/", h.GetConferences)
	conferences.Post("/", admin, h.CreateConference)
	conferences.Get("/:conferenceId", h.GetConference)
	conferences.Put("/:conferenceId", admin, h.UpdateConference)
	conferences.Delete("/:conferenceId", admin, h.DeleteConference)

	//Presentation
	api.Get("/presentations", h.GetPresentations)
	presentations := conferences.Group("/:conferenceId/presentations")
	presentations.Get("/", h.GetPresentations)
	presentations.Post("/", admin, h.CreatePresentation)
	presentations.Get("/:presentationId", h.GetPresentation)
	presentations.Put("/:presentationId", admin, h.UpdatePresentation)
	presentations.Delete("/:presentationId", admin, h.DeletePresentation)

	//Attendee
	api.Get("/attendees", h.GetAttendees)
	attendees := conferences.Group("/:conferenceId/attendees")
	attendees.Get("/", h.GetAttendees)
	attendees.Post("/", authenticated, h.CreateAttendee)
	attendees.Get("/:userId", h.GetAttendee)
	attendees.Delete("/:userId", authenticated, h.DeleteAttendee)

	//User
	users := api.Group("/users", authenticated)
	users.Get("/", h.GetUsers)
	users.Get("/:userId", h.GetUser)
	users.Put("/:userId", h.UpdateUser)
	users.Delete("/:userId", admin, h.DeleteUser)
}
