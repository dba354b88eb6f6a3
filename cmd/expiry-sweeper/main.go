// Бинарь expiry-sweeper запускается по расписанию (cron): деактивирует
// просроченные подписки и публикует напоминания об окончании подписки
// в ближайшие три дня.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kipsigei/trading-academy/internal/cache"
	"github.com/kipsigei/trading-academy/internal/config"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/rabbitmq"
	subscriptionservice "github.com/kipsigei/trading-academy/internal/services/subscription"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

const reminderWindowDays = 3

func main() {
	cfg := config.MustLoad()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting expiry-sweeper", slog.String("env", cfg.Env))

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = ch.Close()
	}()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.DB.Close()
	}()

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		logger.Error("failed to connect to Redis", sl.Err(err))
		os.Exit(1)
	}

	subscriptionService := subscriptionservice.New(db, rabbitmq.NewChannelPublisher(ch), cacheRedis, logger)

	expired, err := subscriptionService.ExpireDue(ctx)
	if err != nil {
		logger.Error("failed to expire subscriptions", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("expired subscriptions deactivated", slog.Int("count", expired))

	sent, err := subscriptionService.SendReminders(ctx, reminderWindowDays)
	if err != nil {
		logger.Error("failed to send reminders", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("expiry reminders published", slog.Int("count", sent))
}
