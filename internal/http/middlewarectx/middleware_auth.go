// Package middlewarectx содержит HTTP middleware для проверки JWT токенов,
// ограничения доступа по роли и лимита запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке
// Authorization, включая чёрный список отозванных токенов, и в случае
// успеха добавляет в контекст email, роль и UID пользователя.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	jwtlib "github.com/kipsigei/trading-academy/internal/lib/jwt"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// Email — ключ для email пользователя в контексте
	Email Key = "email"
	// Role — ключ для роли пользователя в контексте
	Role Key = "role"
	// UserUID — ключ для идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// Token — ключ для сырого JWT в контексте, нужен обработчику logout
	Token Key = "token"
)

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*jwtlib.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден и не отозван, добавляет email, роль, UID и сырой токен
// в контекст запроса, иначе возвращает 401 Unauthorized.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			authHeader := r.Header.Get("Authorization")

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), Email, claims.Email)
			ctx = context.WithValue(ctx, Role, claims.Role)
			ctx = context.WithValue(ctx, UserUID, claims.UserUID)
			ctx = context.WithValue(ctx, Token, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly пропускает дальше только запросы с ролью admin.
// Для остальных возвращает 403 Forbidden.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(Role).(string)
			if !ok || role != models.RoleAdmin {
				log.Warn("admin access denied",
					slog.String("role", role),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
