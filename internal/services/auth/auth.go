// Package auth содержит логику регистрации, входа с защитой от перебора
// пароля, выхода с отзывом JWT и восстановления пароля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/kipsigei/trading-academy/internal/lib/jwt"
	"github.com/kipsigei/trading-academy/internal/lib/loginguard"
	"github.com/kipsigei/trading-academy/internal/lib/password"
	"github.com/kipsigei/trading-academy/internal/lib/resettoken"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/metrics"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/rabbitmq"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

var (
	// ErrInvalidCredentials — email или пароль не подходят. Не раскрывает,
	// существует ли учётная запись.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked — вход временно заблокирован после серии неудачных попыток.
	ErrAccountLocked = errors.New("account is temporarily locked")
	// ErrTokenRevoked — токен отозван через logout.
	ErrTokenRevoked = errors.New("token has been revoked")
	// ErrResetTokenInvalid — токен восстановления не существует.
	ErrResetTokenInvalid = errors.New("reset token is invalid")
	// ErrResetTokenExpired — срок действия токена восстановления истёк.
	ErrResetTokenExpired = errors.New("reset token has expired")
)

const blacklistKeyPrefix = "jwt:blacklist:"

// UserRepository описывает контракт хранилища для операций аутентификации.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	RecordFailedLogin(ctx context.Context, userUID string) (loginguard.State, error)
	RecordSuccessfulLogin(ctx context.Context, userUID string) error
	SetResetToken(ctx context.Context, userUID, token string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userUID string) error
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
}

// TokenBlacklist — хранилище отозванных JWT, живущих до естественного
// истечения срока токена.
type TokenBlacklist interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service отвечает за регистрацию, вход, выход и восстановление пароля.
type Service struct {
	users     UserRepository
	blacklist TokenBlacklist
	jwtMaker  jwtlib.Maker
	publisher rabbitmq.Publisher
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, blacklist TokenBlacklist, jwtMaker jwtlib.Maker,
	publisher rabbitmq.Publisher, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		blacklist: blacklist,
		jwtMaker:  jwtMaker,
		publisher: publisher,
		log:       log,
	}
}

// RegisterInput — данные регистрации нового пользователя.
type RegisterInput struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Password         string
	TelegramUsername string
}

// Register создает пользователя с ролью user и ожидающей подписки Basic.
// Email приводится к нижнему регистру. Возвращает UID нового пользователя
// или repository.ErrEmailTaken, если email уже занят.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	const op = "auth.Register"

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Email:            strings.ToLower(in.Email),
		PasswordHash:     hashed,
		Phone:            in.Phone,
		TelegramUsername: in.TelegramUsername,
		Role:             models.RoleUser,
		Subscription: models.Subscription{
			Plan:          models.PlanBasic,
			Status:        models.SubscriptionPending,
			PaymentMethod: "M-Pesa",
		},
		TelegramStatus: models.TelegramPending,
	}

	uid, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_uid", uid))
	return uid, nil
}

// Login проверяет пароль и выдает JWT. Неудачные попытки считаются,
// после серии подряд вход блокируется. Ответ не различает несуществующий
// email и неверный пароль.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	state := loginguard.State{Attempts: user.LoginAttempts, LockUntil: user.LockUntil}
	if loginguard.IsLocked(state, now) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return "", nil, ErrAccountLocked
	}

	ok, err := password.Verify(user.PasswordHash, rawPassword)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		next, err := s.users.RecordFailedLogin(ctx, user.UID)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}
		if loginguard.IsLocked(next, now) {
			metrics.AccountLockouts.Inc()
			s.log.Warn("account locked after repeated failed logins",
				slog.String("user_uid", user.UID))
		}
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return "", nil, ErrInvalidCredentials
	}

	if err = s.users.RecordSuccessfulLogin(ctx, user.UID); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(user.Email, user.Role, user.UID)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return token, user, nil
}

// Logout отзывает токен: он попадает в чёрный список до момента
// естественного истечения срока действия.
func (s *Service) Logout(ctx context.Context, token string) error {
	const op = "auth.Logout"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err = s.blacklist.Set(ctx, blacklistKeyPrefix+token, true, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ValidateToken проверяет подпись токена и его отсутствие в чёрном списке.
func (s *Service) ValidateToken(ctx context.Context, token string) (*jwtlib.CustomClaims, error) {
	const op = "auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var revoked bool
	found, err := s.blacklist.Get(ctx, blacklistKeyPrefix+token, &revoked)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RequestPasswordReset выдает одноразовый токен восстановления и публикует
// письмо со ссылкой. Для несуществующего email ничего не происходит, ответ
// наружу всегда одинаковый.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestPasswordReset"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	token, expiresAt, err := resettoken.New(time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.SetResetToken(ctx, user.UID, token, expiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	info := models.ResetInfo{
		Email:     user.Email,
		FirstName: user.FirstName,
		Token:     token,
	}
	if err = s.publisher.Publish(rabbitmq.RoutingKeyPasswordReset, info); err != nil {
		s.log.Error("failed to publish password reset email",
			slog.String("user_uid", user.UID), sl.Err(err))
	}
	return nil
}

// ResetPassword меняет пароль по одноразовому токену. Токен сгорает
// первым: он очищается до хеширования и применения нового пароля
// и не переживает даже непригодный новый пароль.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "auth.ResetPassword"

	user, err := s.users.GetUserByResetToken(ctx, token)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.ResetExpires == nil || resettoken.Expired(*user.ResetExpires, time.Now()) {
		if clearErr := s.users.ClearResetToken(ctx, user.UID); clearErr != nil {
			s.log.Error("failed to clear expired reset token",
				slog.String("user_uid", user.UID), sl.Err(clearErr))
		}
		return ErrResetTokenExpired
	}

	if err = s.users.ClearResetToken(ctx, user.UID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.UpdatePassword(ctx, user.UID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset completed", slog.String("user_uid", user.UID))
	return nil
}
