package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipsigei/trading-academy/internal/lib/loginguard"
	"github.com/kipsigei/trading-academy/internal/models"
)

func TestStorage_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		user    models.User
		wantErr error
		setup   func(t *testing.T, factory *TestDataFactory)
	}{
		{
			name:    "successful create user",
			user:    GetTestUserData(),
			wantErr: nil,
			setup:   func(_ *testing.T, _ *TestDataFactory) {},
		},
		{
			name:    "duplicate email is rejected",
			user:    GetTestUserData(),
			wantErr: ErrEmailTaken,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateUser(t, "Existing", "User", "test@example.com", "hashedpassword")
			},
		},
		{
			name: "duplicate email differing only in case is rejected",
			user: func() models.User {
				u := GetTestUserData()
				u.Email = "TEST@Example.com"
				return u
			}(),
			wantErr: ErrEmailTaken,
			setup: func(t *testing.T, factory *TestDataFactory) {
				factory.CreateUser(t, "Existing", "User", "test@example.com", "hashedpassword")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			tt.setup(t, factory)

			uid, err := storage.CreateUser(context.Background(), tt.user)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotEmpty(t, uid)
				NewTestVerification(storage).VerifyUserExists(t, uid)
			}
		})
	}
}

func TestStorage_GetUserByEmail(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "Jane", "Trader", "jane@example.com", "hashedpassword")

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		got, err := storage.GetUserByEmail(context.Background(), "JANE@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, uid, got.UID)
		assert.Equal(t, "jane@example.com", got.Email)
		assert.Equal(t, models.PlanBasic, got.Subscription.Plan)
		assert.Equal(t, models.SubscriptionPending, got.Subscription.Status)
		assert.Nil(t, got.Subscription.ExpiryDate)
	})

	t.Run("unknown email returns ErrUserNotFound", func(t *testing.T) {
		_, err := storage.GetUserByEmail(context.Background(), "nobody@example.com")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_ListUsers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	now := time.Now()
	expiry := now.AddDate(0, 1, 0)
	factory.CreateUserWithSubscription(t, "alice@example.com", models.PlanVIP, models.SubscriptionActive, &now, &expiry, true)
	factory.CreateUserWithSubscription(t, "bob@example.com", models.PlanBasic, models.SubscriptionExpired, nil, nil, false)
	uidCarol := factory.CreateUser(t, "Carol", "Kamau", "carol@example.com", "hashedpassword")

	tests := []struct {
		name      string
		filter    models.ListFilter
		limit     int
		offset    int
		wantCount int
		wantTotal int
	}{
		{
			name:      "no filter returns everyone",
			filter:    models.ListFilter{},
			limit:     10,
			wantCount: 3,
			wantTotal: 3,
		},
		{
			name:      "filter by status",
			filter:    models.ListFilter{Status: models.SubscriptionActive},
			limit:     10,
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "filter by plan",
			filter:    models.ListFilter{Plan: models.PlanBasic},
			limit:     10,
			wantCount: 2,
			wantTotal: 2,
		},
		{
			name:      "search matches name case-insensitively",
			filter:    models.ListFilter{Search: "caROL"},
			limit:     10,
			wantCount: 1,
			wantTotal: 1,
		},
		{
			name:      "pagination returns total beyond the page",
			filter:    models.ListFilter{},
			limit:     2,
			wantCount: 2,
			wantTotal: 3,
		},
		{
			name:      "offset past the end returns empty page with total",
			filter:    models.ListFilter{},
			limit:     10,
			offset:    10,
			wantCount: 0,
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := storage.ListUsers(context.Background(), tt.filter, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
			assert.Equal(t, tt.wantTotal, total)
		})
	}

	t.Run("search matches carol by name", func(t *testing.T) {
		got, _, err := storage.ListUsers(context.Background(), models.ListFilter{Search: "Kamau"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uidCarol, got[0].UID)
	})
}

func TestStorage_RecordFailedLogin(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)

	t.Run("increments attempts and locks at the limit", func(t *testing.T) {
		uid := factory.CreateUserWithLoginState(t, "locking@example.com", 0, nil)

		var st loginguard.State
		var err error
		for range loginguard.MaxAttempts {
			st, err = storage.RecordFailedLogin(context.Background(), uid)
			require.NoError(t, err)
		}

		assert.Equal(t, loginguard.MaxAttempts, st.Attempts)
		require.NotNil(t, st.LockUntil)
		assert.WithinDuration(t, time.Now().Add(loginguard.LockDuration), *st.LockUntil, time.Minute)
	})

	t.Run("expired lock restarts the window at one", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		uid := factory.CreateUserWithLoginState(t, "expiredlock@example.com", loginguard.MaxAttempts, &past)

		st, err := storage.RecordFailedLogin(context.Background(), uid)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Attempts)
		assert.Nil(t, st.LockUntil)
	})

	t.Run("active lock is not extended", func(t *testing.T) {
		until := time.Now().Add(time.Hour)
		uid := factory.CreateUserWithLoginState(t, "activelock@example.com", loginguard.MaxAttempts, &until)

		st, err := storage.RecordFailedLogin(context.Background(), uid)
		require.NoError(t, err)
		require.NotNil(t, st.LockUntil)
		assert.WithinDuration(t, until, *st.LockUntil, time.Second)
	})

	t.Run("unknown user returns ErrUserNotFound", func(t *testing.T) {
		_, err := storage.RecordFailedLogin(context.Background(), uuid.New().String())
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_RecordSuccessfulLogin(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	until := time.Now().Add(time.Hour)
	uid := factory.CreateUserWithLoginState(t, "reset@example.com", 3, &until)

	err := storage.RecordSuccessfulLogin(context.Background(), uid)
	require.NoError(t, err)

	got, err := storage.GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LoginAttempts)
	assert.Nil(t, got.LockUntil)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, time.Now(), *got.LastLogin, time.Minute)
}

func TestStorage_ExpireDueSubscriptions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	now := time.Now()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 1, 0)

	uidDue := factory.CreateUserWithSubscription(t, "due@example.com", models.PlanPremium, models.SubscriptionActive, &past, &past, true)
	factory.CreateUserWithSubscription(t, "current@example.com", models.PlanVIP, models.SubscriptionActive, &now, &future, true)
	factory.CreateUserWithSubscription(t, "already@example.com", models.PlanBasic, models.SubscriptionExpired, &past, &past, false)

	got, err := storage.ExpireDueSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uidDue, got[0].UID)
	assert.Equal(t, models.SubscriptionExpired, got[0].Subscription.Status)
	assert.False(t, got[0].Subscription.TelegramAccess)
	assert.Equal(t, models.TelegramRemoved, got[0].TelegramStatus)

	NewTestVerification(storage).VerifySubscriptionStatus(t, uidDue, models.SubscriptionExpired)

	// Повторный запуск ничего не находит
	got, err = storage.ExpireDueSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorage_FindExpiringSoon(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	now := time.Now()
	inTwoDays := now.AddDate(0, 0, 2)
	inTenDays := now.AddDate(0, 0, 10)
	yesterday := now.AddDate(0, 0, -1)

	uidSoon := factory.CreateUserWithSubscription(t, "soon@example.com", models.PlanPremium, models.SubscriptionActive, &now, &inTwoDays, true)
	factory.CreateUserWithSubscription(t, "later@example.com", models.PlanVIP, models.SubscriptionActive, &now, &inTenDays, true)
	factory.CreateUserWithSubscription(t, "lapsed@example.com", models.PlanBasic, models.SubscriptionActive, &yesterday, &yesterday, true)

	got, err := storage.FindExpiringSoon(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uidSoon, got[0].UID)
}

func TestStorage_UpdateSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "Sam", "Otieno", "sam@example.com", "hashedpassword")

	start := time.Now()
	expiry := start.AddDate(0, 0, 30)
	sub := models.Subscription{
		Plan:           models.PlanVIP,
		Status:         models.SubscriptionActive,
		StartDate:      &start,
		ExpiryDate:     &expiry,
		NextBilling:    &expiry,
		Amount:         "KES 5000",
		PaymentMethod:  "M-Pesa",
		TelegramAccess: true,
	}

	err := storage.UpdateSubscription(context.Background(), uid, sub, models.TelegramPending)
	require.NoError(t, err)

	got, err := storage.GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, models.PlanVIP, got.Subscription.Plan)
	assert.Equal(t, models.SubscriptionActive, got.Subscription.Status)
	assert.True(t, got.Subscription.TelegramAccess)
	assert.Equal(t, models.TelegramPending, got.TelegramStatus)
	assert.Equal(t, "KES 5000", got.Subscription.Amount)
	require.NotNil(t, got.Subscription.ExpiryDate)
	assert.WithinDuration(t, expiry, *got.Subscription.ExpiryDate, time.Second)

	err = storage.UpdateSubscription(context.Background(), uuid.New().String(), sub, models.TelegramPending)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_ResetTokenLifecycle(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "Rita", "Wanjiru", "rita@example.com", "hashedpassword")

	expiresAt := time.Now().Add(time.Hour)
	err := storage.SetResetToken(context.Background(), uid, "sometoken", expiresAt)
	require.NoError(t, err)

	got, err := storage.GetUserByResetToken(context.Background(), "sometoken")
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)
	require.NotNil(t, got.ResetExpires)
	assert.WithinDuration(t, expiresAt, *got.ResetExpires, time.Second)

	err = storage.ClearResetToken(context.Background(), uid)
	require.NoError(t, err)

	_, err = storage.GetUserByResetToken(context.Background(), "sometoken")
	require.ErrorIs(t, err, ErrUserNotFound)

	err = storage.UpdatePassword(context.Background(), uid, "newhash")
	require.NoError(t, err)

	got, err = storage.GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
}

func TestStorage_DeleteUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "Gone", "Soon", "gone@example.com", "hashedpassword")

	err := storage.DeleteUser(context.Background(), uid)
	require.NoError(t, err)
	NewTestVerification(storage).VerifyUserDeleted(t, uid)

	err = storage.DeleteUser(context.Background(), uid)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_StatsOverview(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	now := time.Now()
	expiry := now.AddDate(0, 1, 0)
	factory.CreateUserWithSubscription(t, "a@example.com", models.PlanVIP, models.SubscriptionActive, &now, &expiry, true)
	factory.CreateUserWithSubscription(t, "b@example.com", models.PlanPremium, models.SubscriptionActive, &now, &expiry, true)
	factory.CreateUserWithSubscription(t, "c@example.com", models.PlanBasic, models.SubscriptionExpired, nil, nil, false)
	factory.CreateUser(t, "Pending", "User", "d@example.com", "hashedpassword")

	got, err := storage.StatsOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalUsers)
	assert.Equal(t, 2, got.ActiveSubscriptions)
	assert.Equal(t, 1, got.ExpiredSubscriptions)
	assert.Equal(t, 1, got.PendingSubscriptions)
	assert.Len(t, got.RecentUsers, 4)

	planCounts := map[string]int{}
	for _, pc := range got.PlanStats {
		planCounts[pc.Plan] = pc.Count
	}
	assert.Equal(t, 2, planCounts[models.PlanBasic])
	assert.Equal(t, 1, planCounts[models.PlanPremium])
	assert.Equal(t, 1, planCounts[models.PlanVIP])
}
