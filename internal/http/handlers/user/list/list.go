// Package list реализует HTTP-обработчик постраничного списка пользователей
// с поиском по имени и email и фильтрами по статусу и тарифному плану.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
)

// Service описывает интерфейс выборки каталога пользователей.
type Service interface {
	List(ctx context.Context, filter models.ListFilter, page, limit int) ([]*models.User, models.Pagination, error)
}

// Handler обрабатывает HTTP-запросы списка пользователей.
type Handler struct {
	log         *slog.Logger
	userService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{log: log, userService: userService}
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Description Возвращает страницу каталога с поиском и фильтрами.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param page query int false "Номер страницы, с 1"
// @Param limit query int false "Размер страницы, не более 100"
// @Param search query string false "Подстрока в имени, фамилии или email"
// @Param status query string false "Фильтр по статусу подписки"
// @Param plan query string false "Фильтр по тарифному плану"
// @Success 200 {object} response.Response "Страница каталога"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filter := models.ListFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
		Plan:   r.URL.Query().Get("plan"),
	}

	users, pagination, err := h.userService.List(r.Context(), filter, page, limit)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"users":      users,
		"pagination": pagination,
	}))
}
