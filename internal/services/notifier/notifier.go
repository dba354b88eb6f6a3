// Package notifier читает события из очередей уведомлений и рассылает
// письма по SMTP: напоминания об окончании подписки и ссылки
// восстановления пароля.
package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/lib/smtp"
	"github.com/kipsigei/trading-academy/internal/models"
)

// Service рассылает письма по событиям из очередей.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// SendExpiryReminder отправляет напоминание о скором окончании подписки.
// body — JSON models.ReminderInfo из очереди напоминаний.
func (s *Service) SendExpiryReminder(body []byte) error {
	var message models.ReminderInfo
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal reminder message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "Your subscription is expiring soon"
	bodyText := fmt.Sprintf("Hello %s,\n\n"+
		"Your %s subscription expires on %s.\n\n"+
		"To keep your access to the trading signals channel, please renew "+
		"before the expiry date via M-Pesa.\n\n"+
		"Trading Academy",
		message.FirstName, message.Plan, message.ExpiryDate)

	return s.sendEmail(to, subject, bodyText)
}

// SendPasswordReset отправляет письмо с одноразовым токеном восстановления.
// body — JSON models.ResetInfo из очереди восстановления пароля.
func (s *Service) SendPasswordReset(body []byte) error {
	var message models.ResetInfo
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal password reset message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "Password reset request"
	bodyText := fmt.Sprintf("Hello %s,\n\n"+
		"We received a request to reset your password. Use the token below "+
		"within one hour:\n\n%s\n\n"+
		"If you did not request this, you can safely ignore this email.\n\n"+
		"Trading Academy",
		message.FirstName, message.Token)

	return s.sendEmail(to, subject, bodyText)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.String("subject", subject), slog.Any("to", to))
	return nil
}
