package routes

import (
	"libraryhub/internal/adapters/http/handlers"
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/config"
	"libraryhub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Setup configures all routes for the application. healthCheck reports database health.
func Setup(app *fiber.App, cfg *config.Config, svc *services.Container, healthCheck func() error) {
	healthHandler := handlers.NewHealthHandler(cfg.AppMode, healthCheck)
	authHandler := handlers.NewAuthHandler(svc.Auth, cfg)
	userHandler := handlers.NewUserHandler(svc.Users)
	bookHandler := handlers.NewBookHandler(svc.Inventory)
	requestHandler := handlers.NewRequestHandler(svc.Requests)
	issueHandler := handlers.NewIssueHandler(svc.Loans, svc.Fines)
	fineHandler := handlers.NewFineHandler(svc.Fines, svc.Sweeps)
	donationHandler := handlers.NewDonationHandler(svc.Donations)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")
	api.Get("/", healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(svc.Auth)

	setupAuthRoutes(api.Group("/auth"), authHandler, auth)

	api.Post("/donations", donationHandler.Submit)

	// the member group's middleware covers every /api/v1 route registered after it,
	// so public routes must come first
	member := api.Group("", auth, middleware.NoCacheHeaders())
	setupMemberRoutes(member, bookHandler, requestHandler, issueHandler, fineHandler, dashboardHandler, userHandler)

	admin := member.Group("/admin", middleware.AdminOnly())
	setupAdminRoutes(admin, userHandler, requestHandler, issueHandler, fineHandler, donationHandler, dashboardHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, auth fiber.Handler) {
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	router.Get("/me", auth, handler.Me)
	router.Post("/logout-all", auth, handler.LogoutAll)
}

// setupMemberRoutes configures routes for any signed-in user
func setupMemberRoutes(
	router fiber.Router,
	books *handlers.BookHandler,
	requests *handlers.RequestHandler,
	issues *handlers.IssueHandler,
	fines *handlers.FineHandler,
	dashboard *handlers.DashboardHandler,
	users *handlers.UserHandler,
) {
	router.Get("/books", books.ListBooks)
	router.Get("/books/:id", books.GetBook)
	router.Get("/categories", books.ListCategories)
	router.Post("/books", middleware.AdminOnly(), books.CreateBook)
	router.Delete("/books/:id", middleware.AdminOnly(), books.DeleteBook)

	router.Post("/requests", requests.Submit)
	router.Get("/requests/my", requests.ListMine)

	router.Get("/issues/my", issues.ListMine)
	router.Get("/issues/:id/fine", issues.Fine)

	router.Get("/fines/my", fines.ListMine)

	router.Get("/dashboard", dashboard.GetMemberDashboard)
	router.Put("/profile/password", users.ChangePassword)
}

// setupAdminRoutes configures admin routes
func setupAdminRoutes(
	router fiber.Router,
	users *handlers.UserHandler,
	requests *handlers.RequestHandler,
	issues *handlers.IssueHandler,
	fines *handlers.FineHandler,
	donations *handlers.DonationHandler,
	dashboard *handlers.DashboardHandler,
) {
	router.Get("/dashboard", dashboard.GetAdminDashboard)

	router.Get("/users", users.ListUsers)
	router.Get("/users/:id", users.GetUser)
	router.Put("/users/:id", users.UpdateUser)
	router.Delete("/users/:id", users.DeleteUser)

	router.Get("/requests", requests.List)
	router.Get("/requests/pending/count", requests.PendingCount)
	router.Put("/requests/:id/status", requests.Resolve)

	router.Post("/issues", issues.Issue)
	router.Get("/issues", issues.List)
	router.Get("/issues/overdue", issues.ListOverdue)
	router.Get("/issues/due-soon", issues.ListDueSoon)
	router.Put("/issues/:id/return", issues.Return)
	router.Delete("/issues/:id", issues.Delete)

	router.Post("/fines/calculate-overdue", fines.CalculateOverdue)
	router.Post("/fines/send-reminders", fines.SendReminders)
	router.Get("/fines", fines.List)
	router.Get("/fines/statistics", fines.Statistics)
	router.Put("/fines/:id/pay", fines.Pay)
	router.Put("/fines/:id/waive", fines.Waive)

	router.Get("/donations", donations.List)
	router.Get("/donations/search", donations.Search)
	router.Get("/donations/:id", donations.Get)
	router.Put("/donations/:id/status", donations.UpdateStatus)
}
