// Package smtp отправляет письма аккаунт-сервиса: ссылки на сброс
// пароля и напоминания об окончании подписки. Транспорт и клиент
// отделены интерфейсами, чтобы notifier тестировался без живого
// SMTP-сервера.
package smtp

import "io"

// Client покрывает шаги SMTP-сессии, нужные для отправки одного
// письма. *net/smtp.Client удовлетворяет интерфейсу через обёртку
// в transport.go.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает аутентифицированную SMTP-сессию.
// GetSMTPUser возвращает адрес отправителя для заголовка From.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
