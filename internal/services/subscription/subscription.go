// Package subscription содержит бизнес-логику жизненного цикла подписки:
// активацию, смену статуса, перевод просроченных подписок в expired и
// поиск подписок, истекающих в ближайшие дни.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kipsigei/trading-academy/internal/cache"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/metrics"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/rabbitmq"
)

// DefaultDurationDays — длительность оплаченного периода по умолчанию.
const DefaultDurationDays = 30

// Repository описывает контракт хранилища для операций над подписками.
type Repository interface {
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userUID string, sub models.Subscription, telegramStatus string) error
	ExpireDueSubscriptions(ctx context.Context) ([]*models.User, error)
	FindExpiringSoon(ctx context.Context, withinDays int) ([]*models.User, error)
}

// StatsCache — кэш сводной статистики каталога. Любое изменение
// подписки меняет разбивку по статусам и планам, поэтому кэш
// сбрасывается здесь так же, как при изменениях самих пользователей.
type StatsCache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service реализует операции над подпиской пользователя.
type Service struct {
	repo      Repository
	publisher rabbitmq.Publisher
	cache     StatsCache
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, publisher rabbitmq.Publisher, statsCache StatsCache, log *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, cache: statsCache, log: log}
}

// UpdateInput — изменение подписки администратором. Пустые поля
// не изменяют текущее значение.
type UpdateInput struct {
	Plan         string
	Status       string
	DurationDays int
	Amount       string
}

// IsExpired сообщает, истёк ли оплаченный период к моменту now.
// Подписка без даты окончания считается истёкшей.
func IsExpired(sub models.Subscription, now time.Time) bool {
	if sub.ExpiryDate == nil {
		return true
	}
	return sub.ExpiryDate.Before(now)
}

// Activate включает подписку с отсчётом оплаченного периода от текущего
// момента. Повторная активация не продлевает старый период, а начинает
// новый. Доступ к Telegram-каналу включается, боту публикуется команда
// на добавление пользователя.
func (s *Service) Activate(ctx context.Context, userUID, plan string, durationDays int, amount string) (*models.User, error) {
	const op = "subscription.Activate"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if plan == "" {
		plan = user.Subscription.Plan
	}
	if durationDays <= 0 {
		durationDays = DefaultDurationDays
	}
	if amount == "" {
		amount = user.Subscription.Amount
	}

	now := time.Now().UTC()
	expiry := now.AddDate(0, 0, durationDays)
	sub := models.Subscription{
		Plan:           plan,
		Status:         models.SubscriptionActive,
		StartDate:      &now,
		ExpiryDate:     &expiry,
		NextBilling:    &expiry,
		Amount:         amount,
		PaymentMethod:  user.Subscription.PaymentMethod,
		TelegramAccess: true,
	}

	if err = s.repo.UpdateSubscription(ctx, userUID, sub, models.TelegramPending); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SubscriptionActivations.WithLabelValues(plan).Inc()
	s.invalidateStats(ctx)

	s.publishTelegramSync(user, "grant")
	s.log.Info("subscription activated",
		slog.String("user_uid", userUID),
		slog.String("plan", plan),
		slog.Time("expiry", expiry))

	return s.repo.GetUserByUID(ctx, userUID)
}

// Update изменяет подписку пользователя. Перевод в active идёт через
// Activate с перезапуском оплаченного периода; любой другой статус
// отключает доступ к Telegram-каналу.
func (s *Service) Update(ctx context.Context, userUID string, in UpdateInput) (*models.User, error) {
	const op = "subscription.Update"

	if in.Status == models.SubscriptionActive {
		return s.Activate(ctx, userUID, in.Plan, in.DurationDays, in.Amount)
	}

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := user.Subscription
	hadAccess := sub.TelegramAccess
	if in.Plan != "" {
		sub.Plan = in.Plan
	}
	if in.Status != "" {
		sub.Status = in.Status
	}
	if in.Amount != "" {
		sub.Amount = in.Amount
	}

	telegramStatus := user.TelegramStatus
	if sub.Status != models.SubscriptionActive {
		sub.TelegramAccess = false
		if hadAccess {
			telegramStatus = models.TelegramRemoved
		}
	}

	if err = s.repo.UpdateSubscription(ctx, userUID, sub, telegramStatus); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateStats(ctx)

	if hadAccess && !sub.TelegramAccess {
		s.publishTelegramSync(user, "revoke")
	}
	s.log.Info("subscription updated",
		slog.String("user_uid", userUID),
		slog.String("status", sub.Status))

	return s.repo.GetUserByUID(ctx, userUID)
}

// ExpireDue переводит все просроченные активные подписки в expired,
// отзывает доступ к Telegram-каналу и возвращает число затронутых
// пользователей.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	const op = "subscription.ExpireDue"

	expired, err := s.repo.ExpireDueSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for _, user := range expired {
		s.publishTelegramSync(user, "revoke")
	}
	metrics.SubscriptionsExpired.Add(float64(len(expired)))

	if len(expired) > 0 {
		s.invalidateStats(ctx)
		s.log.Info("subscriptions expired", slog.Int("count", len(expired)))
	}
	return len(expired), nil
}

// SendReminders публикует напоминания для подписок, истекающих
// в ближайшие withinDays дней, и возвращает их количество.
func (s *Service) SendReminders(ctx context.Context, withinDays int) (int, error) {
	const op = "subscription.SendReminders"

	expiring, err := s.repo.FindExpiringSoon(ctx, withinDays)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sent := 0
	for _, user := range expiring {
		if user.Subscription.ExpiryDate == nil {
			continue
		}
		reminder := models.ReminderInfo{
			Email:      user.Email,
			FirstName:  user.FirstName,
			Plan:       user.Subscription.Plan,
			ExpiryDate: user.Subscription.ExpiryDate.Format("2006-01-02"),
		}
		if err := s.publisher.Publish(rabbitmq.RoutingKeyReminder, reminder); err != nil {
			s.log.Error("failed to publish reminder",
				slog.String("user_uid", user.UID), sl.Err(err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.StatsOverviewKey); err != nil {
		s.log.Warn("failed to invalidate stats cache", sl.Err(err))
	}
}

func (s *Service) publishTelegramSync(user *models.User, action string) {
	event := models.TelegramSyncEvent{
		UserUID:          user.UID,
		TelegramUsername: user.TelegramUsername,
		Action:           action,
	}
	if err := s.publisher.Publish(rabbitmq.RoutingKeyTelegram, event); err != nil {
		s.log.Error("failed to publish telegram sync event",
			slog.String("user_uid", user.UID),
			slog.String("action", action), sl.Err(err))
	}
}
