// Package user содержит административные операции над каталогом
// пользователей: постраничные выборки с поиском, создание и изменение
// учётных записей, удаление и сводную статистику с кэшированием.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kipsigei/trading-academy/internal/cache"
	"github.com/kipsigei/trading-academy/internal/lib/password"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/services/subscription"
)

// Пределы пагинации списка пользователей.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

const statsCacheTTL = time.Minute

// Repository описывает контракт хранилища для каталога пользователей.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.ListFilter, limit, offset int) ([]*models.User, int, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userUID string) error
	StatsOverview(ctx context.Context) (*models.StatsOverview, error)
}

// StatsCache — кэш сводной статистики.
type StatsCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// SubscriptionManager — операции жизненного цикла подписки, которыми
// пользуется каталог при изменении подписочных полей.
type SubscriptionManager interface {
	Update(ctx context.Context, userUID string, in subscription.UpdateInput) (*models.User, error)
}

// Service реализует административные операции над пользователями.
type Service struct {
	repo          Repository
	cache         StatsCache
	subscriptions SubscriptionManager
	log           *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache StatsCache, subscriptions SubscriptionManager, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, subscriptions: subscriptions, log: log}
}

// List возвращает страницу каталога под фильтром. Номер страницы и размер
// приводятся к допустимым пределам, выход за последнюю страницу — не ошибка.
func (s *Service) List(ctx context.Context, filter models.ListFilter, page, limit int) ([]*models.User, models.Pagination, error) {
	const op = "user.List"

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	users, total, err := s.repo.ListUsers(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("%s: %w", op, err)
	}

	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	pagination := models.Pagination{
		Current: page,
		Pages:   pages,
		Total:   total,
		Limit:   limit,
	}
	return users, pagination, nil
}

// Get возвращает пользователя по UID.
func (s *Service) Get(ctx context.Context, userUID string) (*models.User, error) {
	const op = "user.Get"
	u, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateInput — данные новой учётной записи, создаваемой администратором.
// В отличие от регистрации, администратор может сразу задать роль,
// тарифный план и активировать подписку.
type CreateInput struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Password         string
	TelegramUsername string
	Role             string
	Plan             string
	Status           string
	DurationDays     int
	Amount           string
}

// Create создает учётную запись из административной панели.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	const op = "user.Create"

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	plan := in.Plan
	if plan == "" {
		plan = models.PlanBasic
	}
	status := in.Status
	if status == "" {
		status = models.SubscriptionPending
	}

	user := models.User{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Email:            strings.ToLower(in.Email),
		PasswordHash:     hashed,
		Phone:            in.Phone,
		TelegramUsername: in.TelegramUsername,
		Role:             role,
		Subscription: models.Subscription{
			Plan:          plan,
			Status:        models.SubscriptionPending,
			PaymentMethod: "M-Pesa",
			Amount:        in.Amount,
		},
		TelegramStatus: models.TelegramPending,
	}

	uid, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateStats(ctx)

	if status == models.SubscriptionActive {
		return s.subscriptions.Update(ctx, uid, subscription.UpdateInput{
			Plan:         plan,
			Status:       models.SubscriptionActive,
			DurationDays: in.DurationDays,
			Amount:       in.Amount,
		})
	}

	if status != models.SubscriptionPending {
		return s.subscriptions.Update(ctx, uid, subscription.UpdateInput{Status: status})
	}

	return s.repo.GetUserByUID(ctx, uid)
}

// UpdateInput — частичное изменение учётной записи. nil-поля не меняются.
type UpdateInput struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	TelegramUsername *string
	Role             *string

	Plan         *string
	Status       *string
	DurationDays int
	Amount       *string
}

func (in UpdateInput) touchesSubscription() bool {
	return in.Plan != nil || in.Status != nil || in.Amount != nil
}

// Update применяет частичное изменение профиля и, при необходимости,
// подписки. Подписочные поля проходят через жизненный цикл подписки:
// перевод в active перезапускает оплаченный период.
func (s *Service) Update(ctx context.Context, userUID string, in UpdateInput) (*models.User, error) {
	const op = "user.Update"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.TelegramUsername != nil {
		user.TelegramUsername = *in.TelegramUsername
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	if err = s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateStats(ctx)

	if !in.touchesSubscription() {
		return s.repo.GetUserByUID(ctx, userUID)
	}

	subInput := subscription.UpdateInput{DurationDays: in.DurationDays}
	if in.Plan != nil {
		subInput.Plan = *in.Plan
	}
	if in.Status != nil {
		subInput.Status = *in.Status
	}
	if in.Amount != nil {
		subInput.Amount = *in.Amount
	}
	return s.subscriptions.Update(ctx, userUID, subInput)
}

// Delete безвозвратно удаляет учётную запись.
func (s *Service) Delete(ctx context.Context, userUID string) error {
	const op = "user.Delete"
	if err := s.repo.DeleteUser(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateStats(ctx)
	s.log.Info("user deleted", slog.String("user_uid", userUID))
	return nil
}

// Stats возвращает сводную статистику каталога, кэшируя её на минуту.
func (s *Service) Stats(ctx context.Context) (*models.StatsOverview, error) {
	const op = "user.Stats"

	var cached models.StatsOverview
	found, err := s.cache.Get(ctx, cache.StatsOverviewKey, &cached)
	if err != nil {
		s.log.Warn("stats cache unavailable", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	stats, err := s.repo.StatsOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.cache.Set(ctx, cache.StatsOverviewKey, stats, statsCacheTTL); err != nil {
		s.log.Warn("failed to cache stats", sl.Err(err))
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.StatsOverviewKey); err != nil {
		s.log.Warn("failed to invalidate stats cache", sl.Err(err))
	}
}
