// Package subscriptionupdate реализует HTTP-обработчик смены подписки
// пользователя. Статус active перезапускает оплаченный период и
// открывает доступ к Telegram-каналу, остальные статусы закрывают его.
package subscriptionupdate

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
	"github.com/kipsigei/trading-academy/internal/services/subscription"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Request — целевое состояние подписки.
type Request struct {
	Plan         string `json:"plan" validate:"omitempty,oneof=Basic Premium VIP"`
	Status       string `json:"status" validate:"required,oneof=active expired pending cancelled"`
	DurationDays int    `json:"duration_days" validate:"omitempty,min=1,max=365"`
	Amount       string `json:"amount" validate:"omitempty,max=30"`
}

// Service описывает интерфейс управления подпиской.
type Service interface {
	Update(ctx context.Context, userUID string, in subscription.UpdateInput) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы смены подписки.
type Handler struct {
	log                 *slog.Logger
	subscriptionService Service
	validate            *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptionService Service) *Handler {
	return &Handler{
		log:                 log,
		subscriptionService: subscriptionService,
		validate:            validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Смена подписки
// @Description Меняет план и статус подписки. Статус active перезапускает оплаченный период с текущего момента.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Param request body Request true "Новый план и статус"
// @Success 200 {object} response.Response "Обновлённый пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /users/{uid}/subscription [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.subscriptionupdate"

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

	updated, err := h.subscriptionService.Update(r.Context(), userUID, subscription.UpdateInput{
		Plan:         req.Plan,
		Status:       req.Status,
		DurationDays: req.DurationDays,
		Amount:       req.Amount,
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to update subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to update subscription"))
		return
	}

	log.Info("subscription updated",
		slog.String("user_uid", userUID),
		slog.String("status", req.Status),
	)
	render.JSON(w, r, response.OKWithData(updated))
}
