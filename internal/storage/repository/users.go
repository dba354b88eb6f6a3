package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kipsigei/trading-academy/internal/lib/loginguard"
	"github.com/kipsigei/trading-academy/internal/models"
)

const userColumns = `uid, first_name, last_name, email, password_hash, phone,
		      telegram_username, role,
		      subscription_plan, subscription_status, subscription_start,
		      subscription_expiry, next_billing, amount, payment_method,
		      telegram_access, telegram_status,
		      is_email_verified, email_verify_token, reset_token, reset_expires,
		      login_attempts, lock_until, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		telegramUsername, amount, verifyToken, resetToken          sql.NullString
		subStart, subExpiry, nextBilling                           sql.NullTime
		resetExpires, lockUntil, lastLogin                         sql.NullTime
	)
	if err := row.Scan(&u.UID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone,
		&telegramUsername, &u.Role,
		&u.Subscription.Plan, &u.Subscription.Status, &subStart,
		&subExpiry, &nextBilling, &amount, &u.Subscription.PaymentMethod,
		&u.Subscription.TelegramAccess, &u.TelegramStatus,
		&u.IsEmailVerified, &verifyToken, &resetToken, &resetExpires,
		&u.LoginAttempts, &lockUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	u.TelegramUsername = telegramUsername.String
	u.Subscription.Amount = amount.String
	if verifyToken.Valid {
		u.EmailVerifyToken = &verifyToken.String
	}
	if resetToken.Valid {
		u.ResetToken = &resetToken.String
	}
	if subStart.Valid {
		u.Subscription.StartDate = &subStart.Time
	}
	if subExpiry.Valid {
		u.Subscription.ExpiryDate = &subExpiry.Time
	}
	if nextBilling.Valid {
		u.Subscription.NextBilling = &nextBilling.Time
	}
	if resetExpires.Valid {
		u.ResetExpires = &resetExpires.Time
	}
	if lockUntil.Valid {
		u.LockUntil = &lockUntil.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateUser сохраняет нового пользователя и возвращает его UID.
// Возвращает ErrEmailTaken, если email уже занят (без учёта регистра).
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (first_name, last_name, email, password_hash, phone,
			      telegram_username, role,
			      subscription_plan, subscription_status, subscription_start,
			      subscription_expiry, next_billing, amount, payment_method,
			      telegram_access, telegram_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			  RETURNING uid;`
	err := s.DB.QueryRowContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Phone,
		nullString(user.TelegramUsername), user.Role,
		user.Subscription.Plan, user.Subscription.Status, user.Subscription.StartDate,
		user.Subscription.ExpiryDate, user.Subscription.NextBilling,
		nullString(user.Subscription.Amount), user.Subscription.PaymentMethod,
		user.Subscription.TelegramAccess, user.TelegramStatus).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByUID возвращает пользователя по его UID.
func (s *Storage) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByResetToken возвращает пользователя по токену восстановления пароля.
func (s *Storage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	const op = "storage.GetUserByResetToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func buildListWhere(filter models.ListFilter) (string, []any) {
	where := " WHERE TRUE"
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", n, n, n)
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND subscription_status = $%d", len(args))
	}
	if filter.Plan != "" {
		args = append(args, filter.Plan)
		where += fmt.Sprintf(" AND subscription_plan = $%d", len(args))
	}
	return where, args
}

// ListUsers возвращает страницу пользователей под фильтром и общее количество
// записей под тем же фильтром. Сортировка — новые записи первыми.
func (s *Storage) ListUsers(ctx context.Context, filter models.ListFilter, limit, offset int) ([]*models.User, int, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where, args := buildListWhere(filter)

	var total int
	if err := s.DB.QueryRowContext(ctx, "SELECT count(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// UpdateUser сохраняет профиль, роль и подписку пользователя.
// Хэш пароля, токены и счётчики входа этим методом не изменяются.
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	const op = "storage.UpdateUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET first_name = $1, last_name = $2, phone = $3, telegram_username = $4,
			      role = $5,
			      subscription_plan = $6, subscription_status = $7, subscription_start = $8,
			      subscription_expiry = $9, next_billing = $10, amount = $11,
			      payment_method = $12, telegram_access = $13, telegram_status = $14,
			      updated_at = now()
			  WHERE uid = $15`
	res, err := s.DB.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Phone, nullString(user.TelegramUsername),
		user.Role,
		user.Subscription.Plan, user.Subscription.Status, user.Subscription.StartDate,
		user.Subscription.ExpiryDate, user.Subscription.NextBilling,
		nullString(user.Subscription.Amount),
		user.Subscription.PaymentMethod, user.Subscription.TelegramAccess, user.TelegramStatus,
		user.UID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// DeleteUser безвозвратно удаляет пользователя.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// RecordFailedLogin атомарно применяет политику loginguard к счётчикам
// пользователя одним UPDATE: параллельные неудачные попытки не теряют
// инкременты. Возвращает состояние счётчиков после применения.
func (s *Storage) RecordFailedLogin(ctx context.Context, userUID string) (loginguard.State, error) {
	const op = "storage.RecordFailedLogin"
	select {
	case <-ctx.Done():
		return loginguard.State{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET login_attempts = CASE
			          WHEN lock_until IS NOT NULL AND lock_until < now() THEN 1
			          ELSE login_attempts + 1
			      END,
			      lock_until = CASE
			          WHEN lock_until IS NOT NULL AND lock_until < now() THEN NULL
			          WHEN lock_until IS NULL AND login_attempts + 1 >= $2 THEN now() + INTERVAL '2 hours'
			          ELSE lock_until
			      END,
			      updated_at = now()
			  WHERE uid = $1
			  RETURNING login_attempts, lock_until`
	var attempts int
	var lockUntil sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, userUID, loginguard.MaxAttempts).Scan(&attempts, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return loginguard.State{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return loginguard.State{}, fmt.Errorf("%s: %w", op, err)
	}

	st := loginguard.State{Attempts: attempts}
	if lockUntil.Valid {
		st.LockUntil = &lockUntil.Time
	}
	return st, nil
}

// RecordSuccessfulLogin безусловно сбрасывает счётчики защиты входа
// и фиксирует момент последнего входа.
func (s *Storage) RecordSuccessfulLogin(ctx context.Context, userUID string) error {
	const op = "storage.RecordSuccessfulLogin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET login_attempts = 0, lock_until = NULL, last_login = now(), updated_at = now()
			  WHERE uid = $1`
	_, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetResetToken сохраняет токен восстановления пароля, затирая предыдущий.
func (s *Storage) SetResetToken(ctx context.Context, userUID, token string, expiresAt time.Time) error {
	const op = "storage.SetResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET reset_token = $2, reset_expires = $3, updated_at = now()
			  WHERE uid = $1`
	_, err := s.DB.ExecContext(ctx, query, userUID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearResetToken удаляет токен восстановления. Вызывается до применения
// нового пароля: токен одноразовый, даже если смена пароля не удалась.
func (s *Storage) ClearResetToken(ctx context.Context, userUID string) error {
	const op = "storage.ClearResetToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET reset_token = NULL, reset_expires = NULL, updated_at = now()
			  WHERE uid = $1`
	_, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePassword сохраняет новый хэш пароля. Единственный метод,
// изменяющий password_hash после создания пользователя.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $2, updated_at = now()
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, userUID, passwordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// UpdateSubscription сохраняет подписку и статус синхронизации с Telegram.
func (s *Storage) UpdateSubscription(ctx context.Context, userUID string, sub models.Subscription, telegramStatus string) error {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_plan = $2, subscription_status = $3, subscription_start = $4,
			      subscription_expiry = $5, next_billing = $6, amount = $7,
			      payment_method = $8, telegram_access = $9, telegram_status = $10,
			      updated_at = now()
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, userUID,
		sub.Plan, sub.Status, sub.StartDate,
		sub.ExpiryDate, sub.NextBilling, nullString(sub.Amount),
		sub.PaymentMethod, sub.TelegramAccess, telegramStatus)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// ExpireDueSubscriptions переводит в expired все активные подписки с
// истёкшей датой окончания, отзывая доступ к Telegram-каналу.
// Возвращает затронутых пользователей.
func (s *Storage) ExpireDueSubscriptions(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ExpireDueSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_status = 'expired', telegram_access = FALSE,
			      telegram_status = 'removed', updated_at = now()
			  WHERE subscription_status = 'active' AND subscription_expiry < now()
			  RETURNING ` + userColumns
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindExpiringSoon возвращает активные подписки, истекающие в отрезке
// [now, now+withinDays], границы включительно.
func (s *Storage) FindExpiringSoon(ctx context.Context, withinDays int) ([]*models.User, error) {
	const op = "storage.FindExpiringSoon"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE subscription_status = 'active'
			    AND subscription_expiry >= now()
			    AND subscription_expiry <= now() + make_interval(days => $1)
			  ORDER BY subscription_expiry`
	rows, err := s.DB.QueryContext(ctx, query, withinDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// StatsOverview собирает сводную статистику каталога: количество
// пользователей по статусам подписки, разбивку по планам и пять
// новейших учётных записей.
func (s *Storage) StatsOverview(ctx context.Context) (*models.StatsOverview, error) {
	const op = "storage.StatsOverview"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	stats := &models.StatsOverview{}
	query := `SELECT count(*),
			      count(*) FILTER (WHERE subscription_status = 'active'),
			      count(*) FILTER (WHERE subscription_status = 'expired'),
			      count(*) FILTER (WHERE subscription_status = 'pending')
			  FROM users`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&stats.TotalUsers,
		&stats.ActiveSubscriptions, &stats.ExpiredSubscriptions, &stats.PendingSubscriptions); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT subscription_plan, count(*) FROM users GROUP BY subscription_plan ORDER BY subscription_plan`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var pc models.PlanCount
		if err = rows.Scan(&pc.Plan, &pc.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stats.PlanStats = append(stats.PlanStats, pc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recent, err := s.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = recent.Close()
	}()
	for recent.Next() {
		u, err := scanUser(recent)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stats.RecentUsers = append(stats.RecentUsers, u)
	}
	if err = recent.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
