// Package register реализует HTTP-обработчик регистрации пользователей.
//
// Декодирует и валидирует входные данные, делегирует создание учётной
// записи сервису аутентификации и возвращает UID нового пользователя.
package register

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
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Request — входные данные для регистрации.
type Request struct {
	FirstName        string `json:"first_name" validate:"required,max=50"`
	LastName         string `json:"last_name" validate:"required,max=50"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone" validate:"required,min=10,max=15"`
	Password         string `json:"password" validate:"required,min=6,max=72"`
	TelegramUsername string `json:"telegram_username" validate:"omitempty,max=32"`
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (string, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
// @Summary Регистрация пользователя
// @Description Создает учётную запись с подпиской Basic в статусе pending.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового пользователя"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	uid, err := h.authService.Register(r.Context(), auth.RegisterInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Password:         req.Password,
		TelegramUsername: req.TelegramUsername,
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		log.Warn("registration with taken email")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("email is already registered"))
		return
	}
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register user"))
		return
	}

	log.Info("user registered", slog.String("user_uid", uid))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id":      uid,
		"message": "user registered successfully",
	}))
}
