// Package login реализует HTTP-обработчик входа пользователей.
//
// Декодирует и валидирует учётные данные, делегирует проверку сервису
// аутентификации и возвращает JWT вместе с данными пользователя.
// Несуществующий email и неверный пароль дают одинаковый ответ.
package login

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
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/services/auth"
)

// Request — структура входных данных для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

// Handler обрабатывает HTTP-запросы входа.
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
// @Summary Вход пользователя
// @Description Аутентифицирует пользователя по email и паролю, возвращает JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные или временная блокировка"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	// Заблокированная учётная запись даёт тот же ответ, что и неверный
	// пароль или несуществующий email: никакой информации для перебора.
	if errors.Is(err, auth.ErrAccountLocked) || errors.Is(err, auth.ErrInvalidCredentials) {
		log.Warn("failed login attempt")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid email or password, try again later"))
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("login success", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
		"user":  user,
	}))
}
