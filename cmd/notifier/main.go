// Бинарь notifier читает очереди уведомлений и рассылает письма по SMTP:
// напоминания об окончании подписки и ссылки восстановления пароля.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kipsigei/trading-academy/internal/config"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/lib/smtp"
	"github.com/kipsigei/trading-academy/internal/rabbitmq"
	notifierservice "github.com/kipsigei/trading-academy/internal/services/notifier"
)

func main() {
	ctx := context.Background()
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting notifier", slog.String("env", cfg.Env))

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

	transport := smtp.NewTransport(cfg, logger)
	notifierService := notifierservice.New(transport, logger)

	err = rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.QueueReminders, notifierService.SendExpiryReminder)
	if err != nil {
		logger.Error("failed to start reminders consumer", sl.Err(err))
		os.Exit(1)
	}
	err = rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.QueuePasswordReset, notifierService.SendPasswordReset)
	if err != nil {
		logger.Error("failed to start password-reset consumer", sl.Err(err))
		os.Exit(1)
	}

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	<-sigterm

	logger.Info("notifier shutting down gracefully")
}
