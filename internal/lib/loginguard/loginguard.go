// Package loginguard реализует политику блокировки входа при переборе пароля
// как чистые функции над счётчиком неудачных попыток и меткой блокировки.
//
// Политика: после 5 подряд неудачных попыток вход блокируется на 2 часа.
// Снятие блокировки ленивое — отдельного таймера нет, истечение проверяется
// при следующей попытке входа. Те же правила хранилище применяет атомарно
// на стороне SQL, этот пакет — эталон политики для бизнес-логики и тестов.
package loginguard

import "time"

const (
	// MaxAttempts — количество подряд неудачных попыток до блокировки.
	MaxAttempts = 5
	// LockDuration — длительность блокировки входа.
	LockDuration = 2 * time.Hour
)

// State — счётчики защиты входа одной учётной записи.
type State struct {
	Attempts  int        // Подряд неудачные попытки
	LockUntil *time.Time // Блокировка до этого момента, nil — нет блокировки
}

// IsLocked сообщает, заблокирован ли вход в момент now.
// Функция чистая: ничего не изменяет.
func IsLocked(st State, now time.Time) bool {
	return st.LockUntil != nil && st.LockUntil.After(now)
}

// OnFailure возвращает состояние после неудачной попытки входа в момент now.
//
// Если прежняя блокировка уже истекла, счёт начинается заново с 1 (эта
// попытка), блокировка снимается. Иначе счётчик увеличивается, и на
// MaxAttempts-й попытке выставляется блокировка now+LockDuration.
// На неудачной попытке счётчик никогда не сбрасывается в 0.
func OnFailure(st State, now time.Time) State {
	if st.LockUntil != nil && st.LockUntil.Before(now) {
		return State{Attempts: 1}
	}

	next := State{Attempts: st.Attempts + 1, LockUntil: st.LockUntil}
	if next.Attempts >= MaxAttempts && !IsLocked(st, now) {
		until := now.Add(LockDuration)
		next.LockUntil = &until
	}
	return next
}

// OnSuccess возвращает состояние после успешного входа: счётчик и блокировка
// сбрасываются безусловно.
func OnSuccess(State) State {
	return State{}
}
