// Package read реализует HTTP-обработчик чтения одного пользователя по UID.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Service описывает интерфейс чтения пользователя.
type Service interface {
	Get(ctx context.Context, userUID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы чтения пользователя.
type Handler struct {
	log         *slog.Logger
	userService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{log: log, userService: userService}
}

// ServeHTTP godoc
// @Summary Пользователь по UID
// @Description Возвращает профиль и подписку пользователя.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Success 200 {object} response.Response "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{uid} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "uid")

	user, err := h.userService.Get(r.Context(), userUID)
	if errors.Is(err, repository.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OKWithData(user))
}
