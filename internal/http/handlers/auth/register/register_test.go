package register

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

	"github.com/kipsigei/trading-academy/internal/services/auth"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Мок сервиса с методом Register
type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, in auth.RegisterInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	validBody := Request{
		FirstName: "Brian",
		LastName:  "Kipsigei",
		Email:     "brian@example.com",
		Phone:     "+254712345678",
		Password:  "password123",
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*AuthServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name:        "valid registration",
			requestBody: validBody,
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterInput")).
					Return("c7b1a9d2-1111-2222-3333-444455556666", nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `"id":"c7b1a9d2-1111-2222-3333-444455556666"`,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `"message":"invalid request body"`,
		},
		{
			name: "validation error - missing password",
			requestBody: Request{
				FirstName: "Brian",
				LastName:  "Kipsigei",
				Email:     "brian@example.com",
				Phone:     "+254712345678",
			},
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `"field":"Password"`,
		},
		{
			name:        "email already taken",
			requestBody: validBody,
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterInput")).
					Return("", repository.ErrEmailTaken).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       `"message":"email is already registered"`,
		},
		{
			name:        "service error",
			requestBody: validBody,
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterInput")).
					Return("", errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `"message":"failed to register user"`,
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

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-id"))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)

			authMock.AssertExpectations(t)
		})
	}
}
