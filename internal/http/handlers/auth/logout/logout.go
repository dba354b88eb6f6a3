// Package logout реализует HTTP-обработчик выхода: текущий JWT попадает
// в чёрный список и перестаёт приниматься до истечения своего срока.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/middlewarectx"
	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики выхода.
type Service interface {
	Logout(ctx context.Context, token string) error
}

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log         *slog.Logger
	authService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service) *Handler {
	return &Handler{log: log, authService: authService}
}

// ServeHTTP godoc
// @Summary Выход пользователя
// @Description Отзывает текущий JWT: токен перестаёт приниматься.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Выход выполнен"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := r.Context().Value(middlewarectx.Token).(string)
	if !ok || token == "" {
		log.Error("token missing from request context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("not authenticated"))
		return
	}

	if err := h.authService.Logout(r.Context(), token); err != nil {
		log.Error("logout failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to log out"))
		return
	}

	log.Info("logout success")
	render.JSON(w, r, response.OK("logged out successfully"))
}
