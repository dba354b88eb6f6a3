// Package academy предоставляет маршруты для основного приложения.
package academy

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/forgotpassword"
	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/login"
	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/logout"
	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/me"
	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/register"
	"github.com/kipsigei/trading-academy/internal/http/handlers/auth/resetpassword"
	"github.com/kipsigei/trading-academy/internal/http/handlers/health"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/create"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/expiresweep"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/list"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/read"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/remove"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/stats"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/subscriptionupdate"
	"github.com/kipsigei/trading-academy/internal/http/handlers/user/update"
	"github.com/kipsigei/trading-academy/internal/http/middlewarectx"
	authservice "github.com/kipsigei/trading-academy/internal/services/auth"
	subscriptionservice "github.com/kipsigei/trading-academy/internal/services/subscription"
	userservice "github.com/kipsigei/trading-academy/internal/services/user"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	authService *authservice.Service, userService *userservice.Service,
	subscriptionService *subscriptionservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger))

		// Открытые конечные точки
		r.Get("/health", health.New(logger, func() error {
			return repository.CheckDatabaseReady(db)
		}).ServeHTTP)
		r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService).ServeHTTP)
		r.Post("/auth/forgot-password", forgotpassword.New(logger, authService).ServeHTTP)
		r.Post("/auth/reset-password", resetpassword.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Post("/auth/logout", logout.New(logger, authService).ServeHTTP)
			r.Get("/auth/me", me.New(logger, userService).ServeHTTP)

			// Административный каталог пользователей
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/users", list.New(logger, userService).ServeHTTP)
				r.Post("/users", create.New(logger, userService).ServeHTTP)
				r.Get("/users/stats/overview", stats.New(logger, userService).ServeHTTP)
				r.Post("/users/subscriptions/expire-due", expiresweep.New(logger, subscriptionService).ServeHTTP)
				r.Get("/users/{uid}", read.New(logger, userService).ServeHTTP)
				r.Put("/users/{uid}", update.New(logger, userService).ServeHTTP)
				r.Delete("/users/{uid}", remove.New(logger, userService).ServeHTTP)
				r.Put("/users/{uid}/subscription", subscriptionupdate.New(logger, subscriptionService).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
