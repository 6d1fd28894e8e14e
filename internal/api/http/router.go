package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/tadbeer/helpdesk/internal/api/http/handlers"
	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	Users          *handlers.UsersHandler
	Departments    *handlers.DepartmentsHandler
	Assist         *handlers.AssistHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Put("/auth/password", cfg.Auth.ChangePassword)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Delete("/:id/comments/:commentId", cfg.Tickets.DeleteComment)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	notifications := protected.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Patch("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/:id", cfg.Notifications.Delete)

	adminOnly := auth.RequireRoles(domain.RoleAdmin)

	users := protected.Group("/users")
	users.Get("/", auth.RequireRoles(domain.RoleManager, domain.RoleAdmin), cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Post("/", adminOnly, cfg.Users.Create)
	users.Put("/:id", adminOnly, cfg.Users.Update)
	users.Delete("/:id", adminOnly, cfg.Users.Delete)

	departments := protected.Group("/departments")
	departments.Get("/", cfg.Departments.List)
	departments.Get("/:id", cfg.Departments.Get)
	departments.Post("/", adminOnly, cfg.Departments.Create)
	departments.Put("/:id", adminOnly, cfg.Departments.Update)
	departments.Delete("/:id", adminOnly, cfg.Departments.Delete)

	ai := protected.Group("/ai")
	ai.Post("/suggest", cfg.Assist.Suggest)
	ai.Post("/tickets/:id/ask", cfg.Assist.Ask)
}
