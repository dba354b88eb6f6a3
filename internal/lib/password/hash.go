// Package password реализует функции для безопасного хеширования и проверки паролей.
//
// GetHash создает bcrypt-хеш пароля для безопасного хранения.
// Verify сравнивает сохранённый bcrypt-хеш с введённым паролем.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCost — стоимость bcrypt. Пароли перехэшируются только при смене,
// поэтому стоимость фиксирована и не читается из конфига.
const HashCost = 12

// bcrypt обрабатывает не более 72 байт пароля.
const maxPasswordBytes = 72

var (
	// ErrEmptyPassword — пустой пароль нельзя хэшировать.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong — пароль длиннее лимита bcrypt.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrCorruptHash — сохранённый хэш повреждён и не является bcrypt-хэшем.
	// Сигнализирует о порче данных, наружу отдается как 500.
	ErrCorruptHash = errors.New("stored password hash is corrupt")
)

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
// Каждый вызов использует новую соль, поэтому два хэша одного пароля
// не совпадают, но оба проходят проверку Verify.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	if password == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// Verify сравнивает bcrypt‑хэш с введённым паролем.
//
// Несовпадение пароля — не ошибка: возвращается (false, nil).
// Ошибка возвращается только если сам хэш не разбирается, тогда это
// ErrCorruptHash.
func Verify(storedHash, candidate string) (bool, error) {
	const op = "password.Verify"
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, ErrCorruptHash)
	}
}
