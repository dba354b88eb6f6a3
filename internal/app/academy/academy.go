package academy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/kipsigei/trading-academy/internal/cache"
	"github.com/kipsigei/trading-academy/internal/config"
	jwtlib "github.com/kipsigei/trading-academy/internal/lib/jwt"
	"github.com/kipsigei/trading-academy/internal/migrations"
	"github.com/kipsigei/trading-academy/internal/rabbitmq"
	authservice "github.com/kipsigei/trading-academy/internal/services/auth"
	subscriptionservice "github.com/kipsigei/trading-academy/internal/services/subscription"
	userservice "github.com/kipsigei/trading-academy/internal/services/user"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// App держит вместе HTTP-сервер и внешние подключения приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	amqp   *amqp.Connection
}

// New инициализирует подключения, прогоняет миграции и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewChannelPublisher(ch)

	jwtMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	subscriptionService := subscriptionservice.New(db, publisher, cacheRedis, logger)
	authService := authservice.New(db, cacheRedis, jwtMaker, publisher, logger)
	userService := userservice.New(db, cacheRedis, subscriptionService, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, authService, userService, subscriptionService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		amqp:   conn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		a.amqp.Close()
		return err
	}
}
