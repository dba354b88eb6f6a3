// Package update реализует HTTP-обработчик частичного изменения
// учётной записи: профиль, роль и подписочные поля. Отсутствующие
// в запросе поля не изменяются.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/kipsigei/trading-academy/internal/http/response"
	"github.com/kipsigei/trading-academy/internal/lib/sl"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/services/user"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Request — частичное изменение учётной записи. nil-поля не изменяются.
type Request struct {
	FirstName        *string `json:"first_name" validate:"omitempty,max=50"`
	LastName         *string `json:"last_name" validate:"omitempty,max=50"`
	Phone            *string `json:"phone" validate:"omitempty,min=10,max=15"`
	TelegramUsername *string `json:"telegram_username" validate:"omitempty,max=32"`
	Role             *string `json:"role" validate:"omitempty,oneof=user admin"`
	Plan             *string `json:"plan" validate:"omitempty,oneof=Basic Premium VIP"`
	Status           *string `json:"status" validate:"omitempty,oneof=active expired pending cancelled"`
	DurationDays     int     `json:"duration_days" validate:"omitempty,min=1,max=365"`
	Amount           *string `json:"amount" validate:"omitempty,max=30"`
}

// Service описывает интерфейс изменения пользователя.
type Service interface {
	Update(ctx context.Context, userUID string, in user.UpdateInput) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы изменения пользователя.
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
// @Summary Изменение пользователя
// @Description Частично изменяет профиль, роль и подписку пользователя.
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Param request body Request true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённый пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{uid} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "uid")

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

	updated, err := h.userService.Update(r.Context(), userUID, user.UpdateInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		TelegramUsername: req.TelegramUsername,
		Role:             req.Role,
		Plan:             req.Plan,
		Status:           req.Status,
		DurationDays:     req.DurationDays,
		Amount:           req.Amount,
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to update user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to update user"))
		return
	}

	log.Info("user updated", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(updated))
}
