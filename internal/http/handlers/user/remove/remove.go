// Package remove реализует HTTP-обработчик удаления пользователя по UID.
package remove

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
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Service описывает интерфейс удаления пользователя.
type Service interface {
	Delete(ctx context.Context, userUID string) error
}

// Handler обрабатывает HTTP-запросы удаления пользователя.
type Handler struct {
	log         *slog.Logger
	userService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{log: log, userService: userService}
}

// ServeHTTP godoc
// @Summary Удаление пользователя
// @Description Безвозвратно удаляет учётную запись по UID.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Success 200 {object} response.Response "Пользователь удалён"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{uid} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "uid")

	err := h.userService.Delete(r.Context(), userUID)
	if errors.Is(err, repository.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to delete user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to delete user"))
		return
	}

	log.Info("user deleted", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OK("user deleted successfully"))
}
