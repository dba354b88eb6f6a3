// Package resetpassword реализует HTTP-обработчик смены пароля
// по одноразовому токену восстановления.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/services/auth"
)

// Request — входные данные смены пароля по токену.
type Request struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Service описывает интерфейс бизнес-логики смены пароля.
type Service interface {
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler обрабатывает HTTP-запросы смены пароля.
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
// @Summary Смена пароля по токену
// @Description Устанавливает новый пароль по одноразовому токену восстановления.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Токен и новый пароль"
// @Success 200 {object} response.Response "Пароль изменён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON, ошибка валидации или токен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"

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

	err := h.authService.ResetPassword(r.Context(), req.Token, req.Password)
	if errors.Is(err, auth.ErrResetTokenInvalid) || errors.Is(err, auth.ErrResetTokenExpired) {
		log.Warn("reset attempt with invalid or expired token")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("reset token is invalid or has expired"))
		return
	}
	if err != nil {
		log.Error("password reset failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OK("password has been reset"))
}
