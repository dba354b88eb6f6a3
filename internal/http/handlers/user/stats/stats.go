// Package stats реализует HTTP-обработчик сводной статистики каталога:
// счётчики по статусам подписки, разбивка по планам и последние регистрации.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
)

// Service описывает интерфейс получения статистики.
type Service interface {
	Stats(ctx context.Context) (*models.StatsOverview, error)
}

// Handler обрабатывает HTTP-запросы статистики.
type Handler struct {
	log         *slog.Logger
	userService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{log: log, userService: userService}
}

// ServeHTTP godoc
// @Summary Статистика каталога
// @Description Возвращает счётчики пользователей, разбивку по планам и последние регистрации.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Сводная статистика"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/stats/overview [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.stats"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	overview, err := h.userService.Stats(r.Context())
	if err != nil {
		log.Error("failed to load stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OKWithData(overview))
}
