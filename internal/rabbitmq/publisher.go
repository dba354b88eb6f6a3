package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Publisher публикует события в обменник. Выделен интерфейсом,
// чтобы сервисы можно было тестировать без брокера.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// ChannelPublisher — реализация Publisher поверх amqp.Channel.
type ChannelPublisher struct {
	ch *amqp.Channel
}

// NewChannelPublisher создает новый ChannelPublisher.
func NewChannelPublisher(ch *amqp.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// Publish сериализует сообщение в JSON и публикует его в обменник
// с заданным ключом маршрутизации.
func (p *ChannelPublisher) Publish(routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
