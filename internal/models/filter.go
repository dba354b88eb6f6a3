package models

// ListFilter представляет параметры выборки пользователей, которые передаются
// в слой доступа к данным. Search ищется как подстрока без учёта регистра
// в имени, фамилии и email; Status и Plan сравниваются точно.
type ListFilter struct {
	Search string // Подстрока для поиска (пустая — без поиска)
	Status string // Статус подписки (пустой — без фильтра)
	Plan   string // Тарифный план (пустой — без фильтра)
}

// Pagination описывает страницу выборки в ответе списка.
type Pagination struct {
	Current int `json:"current"` // Номер текущей страницы, с 1
	Pages   int `json:"pages"`   // Всего страниц
	Total   int `json:"total"`   // Всего записей под фильтром
	Limit   int `json:"limit"`   // Размер страницы
}

// PlanCount — количество пользователей на одном тарифном плане.
type PlanCount struct {
	Plan  string `json:"plan"`
	Count int    `json:"count"`
}

// StatsOverview — сводная статистика каталога пользователей для
// административной панели.
type StatsOverview struct {
	TotalUsers           int         `json:"total_users"`
	ActiveSubscriptions  int         `json:"active_subscriptions"`
	ExpiredSubscriptions int         `json:"expired_subscriptions"`
	PendingSubscriptions int         `json:"pending_subscriptions"`
	PlanStats            []PlanCount `json:"plan_stats"`
	RecentUsers          []*User     `json:"recent_users"` // Пять новейших пользователей
}

// ReminderInfo — данные для письма-напоминания об окончании подписки,
// публикуются в очередь уведомлений.
type ReminderInfo struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	Plan       string `json:"plan"`
	ExpiryDate string `json:"expiry_date"`
}

// ResetInfo — данные для письма со ссылкой восстановления пароля,
// публикуются в очередь уведомлений.
type ResetInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Token     string `json:"token"`
}

// TelegramSyncEvent — событие для внешнего бота, который добавляет и удаляет
// участников закрытого канала.
type TelegramSyncEvent struct {
	UserUID          string `json:"user_uid"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	Action           string `json:"action"` // grant или revoke
}
