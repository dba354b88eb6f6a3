package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/services/auth"
)

// Мок сервиса с методом Login
type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	var user *models.User
	if args.Get(1) != nil {
		user = args.Get(1).(*models.User)
	}
	return args.String(0), user, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	knownUser := &models.User{
		UID:       "c7b1a9d2-1111-2222-3333-444455556666",
		Email:     "brian@example.com",
		FirstName: "Brian",
		Role:      models.RoleUser,
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*AuthServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:        "successful login",
			requestBody: Request{Email: "brian@example.com", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "brian@example.com", "password123").
					Return("jwt-token", knownUser, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       `"token":"jwt-token"`,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `"message":"invalid request body"`,
		},
		{
			name:           "validation error - short password",
			requestBody:    Request{Email: "brian@example.com", Password: "123"},
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `"field":"Password"`,
		},
		{
			name:        "invalid credentials",
			requestBody: Request{Email: "brian@example.com", Password: "wrongpass"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "brian@example.com", "wrongpass").
					Return("", nil, auth.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       `"message":"invalid email or password"`,
		},
		{
			name:        "locked account is indistinguishable from bad password",
			requestBody: Request{Email: "brian@example.com", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "brian@example.com", "password123").
					Return("", nil, auth.ErrAccountLocked).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       `"message":"invalid email or password, try again later"`,
		},
		{
			name:        "service error",
			requestBody: Request{Email: "brian@example.com", Password: "password123"},
			setupMock: func(m *AuthServiceMock) {
				m.On("Login", mock.Anything, "brian@example.com", "password123").
					Return("", nil, errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `"message":"internal service error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthServiceMock)
			tt.setupMock(authMock)

			handler := New(newNoopLogger(), authMock)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				assert.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-id"))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)

			authMock.AssertExpectations(t)
		})
	}
}
