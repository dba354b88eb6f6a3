// Package me реализует HTTP-обработчик чтения собственного профиля
// аутентифицированного пользователя.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/middlewarectx"
	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Service описывает интерфейс чтения пользователя.
type Service interface {
	Get(ctx context.Context, userUID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы собственного профиля.
type Handler struct {
	log         *slog.Logger
	userService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{log: log, userService: userService}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Description Возвращает профиль и подписку аутентифицированного пользователя.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Профиль пользователя"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("not authenticated"))
		return
	}

	user, err := h.userService.Get(r.Context(), userUID)
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Warn("authenticated user no longer exists", slog.String("user_uid", userUID))
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
