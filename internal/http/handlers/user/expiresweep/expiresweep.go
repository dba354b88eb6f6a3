// Package expiresweep реализует HTTP-обработчик ручного запуска
// деактивации просроченных подписок. Тот же проход выполняет по
// расписанию бинарь expiry-sweeper.
package expiresweep

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
)

// Service описывает интерфейс деактивации просроченных подписок.
type Service interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Handler обрабатывает HTTP-запросы запуска деактивации.
type Handler struct {
	log                 *slog.Logger
	subscriptionService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptionService Service) *Handler {
	return &Handler{log: log, subscriptionService: subscriptionService}
}

// ServeHTTP godoc
// @Summary Деактивация просроченных подписок
// @Description Помечает истёкшие активные подписки как expired и закрывает доступ к Telegram-каналу.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Количество деактивированных подписок"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/subscriptions/expire-due [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.expiresweep"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	expired, err := h.subscriptionService.ExpireDue(r.Context())
	if err != nil {
		log.Error("failed to expire subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to expire subscriptions"))
		return
	}

	log.Info("expire sweep finished", slog.Int("expired", expired))
	render.JSON(w, r, response.OKWithData(map[string]int{"expired": expired}))
}
