// Package rabbitmq содержит подключение к RabbitMQ, объявление обменника
// и очередей, публикацию и потребление сообщений.
//
// Через очереди проходят три потока событий: напоминания об окончании
// подписки и письма восстановления пароля (их читает notifier и рассылает
// по SMTP) и команды синхронизации Telegram-канала (их читает внешний бот,
// добавляющий и удаляющий участников).
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Exchange — durable direct-обменник всех событий системы.
const Exchange = "notifications"

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Очереди и ключи маршрутизации.
const (
	QueueReminders     = "notification.upcoming"
	QueuePasswordReset = "notification.password-reset"
	QueueTelegramSync  = "telegram.sync"

	RoutingKeyReminder      = "upcoming"
	RoutingKeyPasswordReset = "password.reset"
	RoutingKeyTelegram      = "telegram"
)

// GetQueues возвращает полный набор очередей системы.
func GetQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueReminders, RoutingKey: RoutingKeyReminder},
		{QueueName: QueuePasswordReset, RoutingKey: RoutingKeyPasswordReset},
		{QueueName: QueueTelegramSync, RoutingKey: RoutingKeyTelegram},
	}
}

// Connect подключается к RabbitMQ с повторами.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменник и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			Exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
