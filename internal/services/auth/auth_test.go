package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/kipsigei/trading-academy/internal/lib/jwt"
	"github.com/kipsigei/trading-academy/internal/lib/loginguard"
	"github.com/kipsigei/trading-academy/internal/lib/password"
	"github.com/kipsigei/trading-academy/internal/models"
	"github.com/kipsigei/trading-academy/internal/services/auth"
	"github.com/kipsigei/trading-academy/internal/storage/repository"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) RecordFailedLogin(ctx context.Context, userUID string) (loginguard.State, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(loginguard.State), args.Error(1)
}

func (m *UserRepoMock) RecordSuccessfulLogin(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func (m *UserRepoMock) SetResetToken(ctx context.Context, userUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userUID, token, expiresAt)
	return args.Error(0)
}

func (m *UserRepoMock) ClearResetToken(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func (m *UserRepoMock) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	args := m.Called(ctx, userUID, passwordHash)
	return args.Error(0)
}

// Мок для TokenBlacklist
type BlacklistMock struct {
	mock.Mock
}

func (m *BlacklistMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *BlacklistMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(email, role, userUID string) (string, error) {
	args := m.Called(email, role, userUID)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

// Мок для Publisher
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo *UserRepoMock, blacklist *BlacklistMock, jwtMock *JwtMakerMock,
	publisher *PublisherMock) *auth.Service {
	return auth.New(repo, blacklist, jwtMock, publisher, newNoopLogger())
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name        string
		input       auth.RegisterInput
		setupMocks  func(r *UserRepoMock)
		wantUserUID string
		wantErr     error
	}{
		{
			name: "successful registration lowercases email and applies defaults",
			input: auth.RegisterInput{
				FirstName: "Jane",
				LastName:  "Trader",
				Email:     "Jane@Example.COM",
				Phone:     "+254700000000",
				Password:  "password123",
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Email == "jane@example.com" &&
						user.Role == models.RoleUser &&
						user.Subscription.Plan == models.PlanBasic &&
						user.Subscription.Status == models.SubscriptionPending &&
						user.Subscription.PaymentMethod == "M-Pesa" &&
						user.TelegramStatus == models.TelegramPending &&
						user.PasswordHash != "" &&
						user.PasswordHash != "password123"
				})).Return("some-uuid-string", nil).Once()
			},
			wantUserUID: "some-uuid-string",
		},
		{
			name: "email already taken",
			input: auth.RegisterInput{
				FirstName: "Jane",
				LastName:  "Trader",
				Email:     "jane@example.com",
				Phone:     "+254700000000",
				Password:  "password123",
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).
					Return("", repository.ErrEmailTaken).Once()
			},
			wantErr: repository.ErrEmailTaken,
		},
		{
			name: "empty password is rejected before touching the repository",
			input: auth.RegisterInput{
				FirstName: "Jane",
				LastName:  "Trader",
				Email:     "jane@example.com",
				Phone:     "+254700000000",
				Password:  "",
			},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    password.ErrEmptyPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), new(PublisherMock))
			tt.setupMocks(repo)

			got, err := svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	rawPassword := "correctpassword"
	hashedPassword, err := password.GetHash(rawPassword)
	require.NoError(t, err)

	makeUser := func() *models.User {
		return &models.User{
			UID:          "uid-1",
			Email:        "test@example.com",
			PasswordHash: hashedPassword,
			Role:         models.RoleUser,
		}
	}

	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(r *UserRepoMock, j *JwtMakerMock)
		wantToken  string
		wantErr    error
	}{
		{
			name:     "successful login",
			email:    "test@example.com",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock) {
				r.On("GetUserByEmail", mock.Anything, "test@example.com").Return(makeUser(), nil).Once()
				r.On("RecordSuccessfulLogin", mock.Anything, "uid-1").Return(nil).Once()
				j.On("GenerateToken", "test@example.com", models.RoleUser, "uid-1").
					Return("jwt-token-123", nil).Once()
			},
			wantToken: "jwt-token-123",
		},
		{
			name:     "unknown email yields the same generic error as a wrong password",
			email:    "nobody@example.com",
			password: "whatever",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock) {
				r.On("GetUserByEmail", mock.Anything, "nobody@example.com").
					Return(nil, repository.ErrUserNotFound).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "wrong password records the failed attempt",
			email:    "test@example.com",
			password: "wrongpassword",
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock) {
				r.On("GetUserByEmail", mock.Anything, "test@example.com").Return(makeUser(), nil).Once()
				r.On("RecordFailedLogin", mock.Anything, "uid-1").
					Return(loginguard.State{Attempts: 1}, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "locked account rejects even the correct password",
			email:    "test@example.com",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock, _ *JwtMakerMock) {
				until := time.Now().Add(time.Hour)
				user := makeUser()
				user.LoginAttempts = loginguard.MaxAttempts
				user.LockUntil = &until
				r.On("GetUserByEmail", mock.Anything, "test@example.com").Return(user, nil).Once()
			},
			wantErr: auth.ErrAccountLocked,
		},
		{
			name:     "expired lock does not block the login",
			email:    "test@example.com",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock, j *JwtMakerMock) {
				past := time.Now().Add(-time.Minute)
				user := makeUser()
				user.LoginAttempts = loginguard.MaxAttempts
				user.LockUntil = &past
				r.On("GetUserByEmail", mock.Anything, "test@example.com").Return(user, nil).Once()
				r.On("RecordSuccessfulLogin", mock.Anything, "uid-1").Return(nil).Once()
				j.On("GenerateToken", "test@example.com", models.RoleUser, "uid-1").
					Return("jwt-token-123", nil).Once()
			},
			wantToken: "jwt-token-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			jwtMock := new(JwtMakerMock)
			svc := newService(repo, new(BlacklistMock), jwtMock, new(PublisherMock))
			tt.setupMocks(repo, jwtMock)

			token, user, err := svc.Login(context.Background(), tt.email, tt.password)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
				require.NotNil(t, user)
				assert.Equal(t, "uid-1", user.UID)
			}
			repo.AssertExpectations(t)
			jwtMock.AssertExpectations(t)
		})
	}
}

func TestService_Logout(t *testing.T) {
	t.Run("valid token lands in the blacklist until it expires", func(t *testing.T) {
		claims := &customjwt.CustomClaims{
			Email: "test@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		jwtMock := new(JwtMakerMock)
		blacklist := new(BlacklistMock)
		jwtMock.On("ParseToken", "valid-token").Return(claims, nil).Once()
		blacklist.On("Set", mock.Anything, "jwt:blacklist:valid-token", true,
			mock.AnythingOfType("time.Duration")).Return(nil).Once()

		svc := newService(new(UserRepoMock), blacklist, jwtMock, new(PublisherMock))
		err := svc.Logout(context.Background(), "valid-token")

		require.NoError(t, err)
		jwtMock.AssertExpectations(t)
		blacklist.AssertExpectations(t)
	})

	t.Run("already expired token is not stored", func(t *testing.T) {
		claims := &customjwt.CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		jwtMock := new(JwtMakerMock)
		blacklist := new(BlacklistMock)
		jwtMock.On("ParseToken", "expired-token").Return(claims, nil).Once()

		svc := newService(new(UserRepoMock), blacklist, jwtMock, new(PublisherMock))
		err := svc.Logout(context.Background(), "expired-token")

		require.NoError(t, err)
		blacklist.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unparseable token is an error", func(t *testing.T) {
		jwtMock := new(JwtMakerMock)
		jwtMock.On("ParseToken", "garbage").Return(nil, errors.New("invalid token")).Once()

		svc := newService(new(UserRepoMock), new(BlacklistMock), jwtMock, new(PublisherMock))
		err := svc.Logout(context.Background(), "garbage")

		require.Error(t, err)
	})
}

func TestService_ValidateToken(t *testing.T) {
	validClaims := &customjwt.CustomClaims{
		Email:   "test@example.com",
		Role:    models.RoleUser,
		UserUID: "uid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	tests := []struct {
		name       string
		token      string
		setupMocks func(j *JwtMakerMock, b *BlacklistMock)
		wantErr    error
		wantUID    string
	}{
		{
			name:  "valid token",
			token: "valid-token",
			setupMocks: func(j *JwtMakerMock, b *BlacklistMock) {
				j.On("ParseToken", "valid-token").Return(validClaims, nil).Once()
				b.On("Get", mock.Anything, "jwt:blacklist:valid-token", mock.Anything).
					Return(false, nil).Once()
			},
			wantUID: "uid-1",
		},
		{
			name:  "revoked token",
			token: "revoked-token",
			setupMocks: func(j *JwtMakerMock, b *BlacklistMock) {
				j.On("ParseToken", "revoked-token").Return(validClaims, nil).Once()
				b.On("Get", mock.Anything, "jwt:blacklist:revoked-token", mock.Anything).
					Return(true, nil).Once()
			},
			wantErr: auth.ErrTokenRevoked,
		},
		{
			name:  "invalid token",
			token: "invalid-token",
			setupMocks: func(j *JwtMakerMock, _ *BlacklistMock) {
				j.On("ParseToken", "invalid-token").Return(nil, errors.New("invalid token")).Once()
			},
			wantErr: errors.New("invalid token"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtMock := new(JwtMakerMock)
			blacklist := new(BlacklistMock)
			svc := newService(new(UserRepoMock), blacklist, jwtMock, new(PublisherMock))
			tt.setupMocks(jwtMock, blacklist)

			claims, err := svc.ValidateToken(context.Background(), tt.token)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.Nil(t, claims)
			} else {
				require.NoError(t, err)
				require.NotNil(t, claims)
				assert.Equal(t, tt.wantUID, claims.UserUID)
			}
			jwtMock.AssertExpectations(t)
			blacklist.AssertExpectations(t)
		})
	}
}

func TestService_RequestPasswordReset(t *testing.T) {
	t.Run("known email stores a token and publishes the email", func(t *testing.T) {
		user := &models.User{UID: "uid-1", Email: "test@example.com", FirstName: "Jane"}
		repo := new(UserRepoMock)
		publisher := new(PublisherMock)
		repo.On("GetUserByEmail", mock.Anything, "test@example.com").Return(user, nil).Once()
		repo.On("SetResetToken", mock.Anything, "uid-1", mock.AnythingOfType("string"),
			mock.AnythingOfType("time.Time")).Return(nil).Once()
		publisher.On("Publish", "password.reset", mock.MatchedBy(func(msg any) bool {
			info, ok := msg.(models.ResetInfo)
			return ok && info.Email == "test@example.com" && info.Token != ""
		})).Return(nil).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), publisher)
		err := svc.RequestPasswordReset(context.Background(), "test@example.com")

		require.NoError(t, err)
		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		repo := new(UserRepoMock)
		publisher := new(PublisherMock)
		repo.On("GetUserByEmail", mock.Anything, "nobody@example.com").
			Return(nil, repository.ErrUserNotFound).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), publisher)
		err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")

		require.NoError(t, err)
		repo.AssertNotCalled(t, "SetResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestService_ResetPassword(t *testing.T) {
	t.Run("valid token clears itself and changes the password", func(t *testing.T) {
		expires := time.Now().Add(30 * time.Minute)
		user := &models.User{UID: "uid-1", ResetExpires: &expires}
		repo := new(UserRepoMock)
		repo.On("GetUserByResetToken", mock.Anything, "goodtoken").Return(user, nil).Once()
		repo.On("ClearResetToken", mock.Anything, "uid-1").Return(nil).Once()
		repo.On("UpdatePassword", mock.Anything, "uid-1", mock.MatchedBy(func(hash string) bool {
			return hash != "" && hash != "newpassword123"
		})).Return(nil).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), new(PublisherMock))
		err := svc.ResetPassword(context.Background(), "goodtoken", "newpassword123")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("unknown token", func(t *testing.T) {
		repo := new(UserRepoMock)
		repo.On("GetUserByResetToken", mock.Anything, "badtoken").
			Return(nil, repository.ErrUserNotFound).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), new(PublisherMock))
		err := svc.ResetPassword(context.Background(), "badtoken", "newpassword123")

		require.ErrorIs(t, err, auth.ErrResetTokenInvalid)
	})

	t.Run("token burns even when the new password is unusable", func(t *testing.T) {
		// 40 двухбайтовых рун: 40 рун проходят входную валидацию,
		// но 80 байт превышают лимит bcrypt.
		longPassword := strings.Repeat("я", 40)
		expires := time.Now().Add(30 * time.Minute)
		user := &models.User{UID: "uid-1", ResetExpires: &expires}
		repo := new(UserRepoMock)
		repo.On("GetUserByResetToken", mock.Anything, "goodtoken").Return(user, nil).Once()
		repo.On("ClearResetToken", mock.Anything, "uid-1").Return(nil).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), new(PublisherMock))
		err := svc.ResetPassword(context.Background(), "goodtoken", longPassword)

		require.ErrorIs(t, err, password.ErrPasswordTooLong)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired token is cleared and rejected", func(t *testing.T) {
		expires := time.Now().Add(-time.Minute)
		user := &models.User{UID: "uid-1", ResetExpires: &expires}
		repo := new(UserRepoMock)
		repo.On("GetUserByResetToken", mock.Anything, "oldtoken").Return(user, nil).Once()
		repo.On("ClearResetToken", mock.Anything, "uid-1").Return(nil).Once()

		svc := newService(repo, new(BlacklistMock), new(JwtMakerMock), new(PublisherMock))
		err := svc.ResetPassword(context.Background(), "oldtoken", "newpassword123")

		require.ErrorIs(t, err, auth.ErrResetTokenExpired)
		repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}
