// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
)

// Handler обрабатывает HTTP-запросы проверки живости.
type Handler struct {
	log     *slog.Logger
	dbReady func() error
}

// New создает новый экземпляр Handler. dbReady проверяет готовность хранилища.
func New(log *slog.Logger, dbReady func() error) *Handler {
	return &Handler{log: log, dbReady: dbReady}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Description Возвращает ok, если сервис и база данных доступны.
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response "Сервис доступен"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.dbReady(); err != nil {
		h.log.Error("health check failed", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
