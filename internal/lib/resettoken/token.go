// Package resettoken генерирует одноразовые токены для восстановления пароля.
//
// Токен — непрозрачная hex-строка из 32 случайных байт. Выдача нового токена
// затирает предыдущий, проверка срабатывает только один раз: хранилище
// очищает токен до применения нового пароля.
package resettoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// TTL — срок жизни токена восстановления.
const TTL = time.Hour

const tokenBytes = 32

// New возвращает новый токен и момент истечения его срока действия.
func New(now time.Time) (token string, expiresAt time.Time, err error) {
	const op = "resettoken.New"
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return hex.EncodeToString(buf), now.Add(TTL), nil
}

// Expired сообщает, истёк ли срок действия токена к моменту now.
func Expired(expiresAt time.Time, now time.Time) bool {
	return now.After(expiresAt)
}
