// Package create реализует HTTP-обработчик создания пользователя
// из административной панели: с ролью, тарифным планом и, при
// необходимости, сразу активной подпиской.
package create

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
	"github.com/kipsigei/trading-academy/internal/services/user"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Request — входные данные новой учётной записи.
type Request struct {
	FirstName        string `json:"first_name" validate:"required,max=50"`
	LastName         string `json:"last_name" validate:"required,max=50"`
	Email            string `json:"email" validate:"required,email"`
	Phone            string `json:"phone" validate:"required,min=10,max=15"`
	Password         string `json:"password" validate:"required,min=6,max=72"`
	TelegramUsername string `json:"telegram_username" validate:"omitempty,max=32"`
	Role             string `json:"role" validate:"omitempty,oneof=user admin"`
	Plan             string `json:"plan" validate:"omitempty,oneof=Basic Premium VIP"`
	Status           string `json:"status" validate:"omitempty,oneof=active expired pending cancelled"`
	DurationDays     int    `json:"duration_days" validate:"omitempty,min=1,max=365"`
	Amount           string `json:"amount" validate:"omitempty,max=30"`
}

// Service описывает интерфейс создания пользователя.
type Service interface {
	Create(ctx context.Context, in user.CreateInput) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы создания пользователя.
type Handler struct {
	log         *slog.Logger
	userService Service
	validate    *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, userService Service) *Handler {
	return &Handler{
		log:         log,
		userService: userService,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создание пользователя
// @Description Создает учётную запись из административной панели.
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Данные новой учётной записи"
// @Success 201 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.create"

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

	created, err := h.userService.Create(r.Context(), user.CreateInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Password:         req.Password,
		TelegramUsername: req.TelegramUsername,
		Role:             req.Role,
		Plan:             req.Plan,
		Status:           req.Status,
		DurationDays:     req.DurationDays,
		Amount:           req.Amount,
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("email is already registered"))
		return
	}
	if err != nil {
		log.Error("failed to create user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create user"))
		return
	}

	log.Info("user created", slog.String("user_uid", created.UID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(created))
}
