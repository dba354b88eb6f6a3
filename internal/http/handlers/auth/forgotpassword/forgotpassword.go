// Package forgotpassword реализует HTTP-обработчик запроса восстановления
// пароля. Ответ одинаков для существующего и несуществующего email.
package forgotpassword

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
)

// Request — входные данные запроса восстановления пароля.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Service описывает интерфейс бизнес-логики восстановления пароля.
type Service interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

// Handler обрабатывает HTTP-запросы восстановления пароля.
type Handler struct {
	log         *slog.Logger
	authService Service
	validate    *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запрос восстановления пароля
// @Description Высылает письмо с одноразовым токеном, если email зарегистрирован.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Email учётной записи"
// @Success 200 {object} response.Response "Запрос принят"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/forgot-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.forgotpassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		log.Error("password reset request failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.OK("if the email is registered, a reset link has been sent"))
}
