// Package models содержит доменную модель пользователя торговой академии:
// данные учётной записи, счётчики защиты от перебора пароля и вложенную
// подписку, от которой зависит доступ к закрытому Telegram-каналу.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Роли пользователя.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Тарифные планы подписки.
const (
	PlanBasic   = "Basic"
	PlanPremium = "Premium"
	PlanVIP     = "VIP"
)

// Статусы подписки.
const (
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionPending   = "pending"
	SubscriptionCancelled = "cancelled"
)

// Статусы синхронизации с Telegram-каналом: добавлен ли пользователь
// в канал по мнению системы.
const (
	TelegramAdded   = "added"
	TelegramRemoved = "removed"
	TelegramPending = "pending"
)

// Subscription описывает оплаченный доступ пользователя к сигналам.
// Все даты могут быть nil — подписка ещё ни разу не активировалась.
// TelegramAccess может быть true только при статусе active.
type Subscription struct {
	Plan           string     `json:"plan"`                   // Тарифный план: Basic, Premium или VIP
	Status         string     `json:"status"`                 // active, expired, pending или cancelled
	StartDate      *time.Time `json:"start_date,omitempty"`   // Дата начала оплаченного периода
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`  // Дата окончания оплаченного периода
	NextBilling    *time.Time `json:"next_billing,omitempty"` // Дата следующего списания
	Amount         string     `json:"amount,omitempty"`       // Сумма для отображения, например "KES 1500"
	PaymentMethod  string     `json:"payment_method"`         // Способ оплаты, по умолчанию M-Pesa
	TelegramAccess bool       `json:"telegram_access"`        // Право находиться в Telegram-канале
}

// User представляет зарегистрированного пользователя системы.
// PasswordHash и токены никогда не сериализуются в ответы API.
type User struct {
	UID              string       `json:"id"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Email            string       `json:"email"` // Хранится в нижнем регистре, уникален
	PasswordHash     string       `json:"-"`
	Phone            string       `json:"phone"`
	TelegramUsername string       `json:"telegram_username,omitempty"`
	Role             string       `json:"role"` // user или admin
	Subscription     Subscription `json:"subscription"`
	TelegramStatus   string       `json:"telegram_status"` // added, removed или pending
	IsEmailVerified  bool         `json:"is_email_verified"`
	EmailVerifyToken *string      `json:"-"`
	ResetToken       *string      `json:"-"`
	ResetExpires     *time.Time   `json:"-"`
	LoginAttempts    int          `json:"-"` // Подряд неудачные попытки входа
	LockUntil        *time.Time   `json:"-"` // Блокировка входа до этого момента
	LastLogin        *time.Time   `json:"last_login,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// FullName возвращает отображаемое имя пользователя.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
