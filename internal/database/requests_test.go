package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestFixture struct {
	user    *models.User
	company *models.Company
	method  *models.PaymentMethod
}

func setupRequestFixture(t *testing.T, db *DB) requestFixture {
	t.Helper()
	ctx := context.Background()

	user := newTestUser(100, "C-2025-000001")
	require.NoError(t, db.CreateUser(ctx, user))
	company := newTestCompany(t, db, "Acme Exchange")
	method := newTestMethod(t, db, company.ID, "Bank transfer")

	return requestFixture{user: user, company: company, method: method}
}

func newTestRequest(f requestFixture) *models.Request {
	return &models.Request{
		UserID:          f.user.ID,
		CompanyID:       f.company.ID,
		PaymentMethodID: f.method.ID,
		Kind:            models.RequestKindDeposit,
		Amount:          250.50,
		Currency:        "SAR",
		Reference:       "TXN-12345",
	}
}

func TestCreateAndGetRequest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)
	req := newTestRequest(f)
	require.NoError(t, db.CreateRequest(ctx, req))
	assert.NotZero(t, req.ID)
	assert.Equal(t, models.StatusPending, req.Status)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.50, got.Amount)
	assert.Equal(t, "TXN-12345", got.Reference)
	assert.Nil(t, got.ResolvedAt)
}

func TestCreateRequestValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)

	t.Run("UnknownUser", func(t *testing.T) {
		req := newTestRequest(f)
		req.UserID = 999
		assert.ErrorIs(t, db.CreateRequest(ctx, req), ErrNotFound)
	})

	t.Run("UnknownCompany", func(t *testing.T) {
		req := newTestRequest(f)
		req.CompanyID = 999
		assert.ErrorIs(t, db.CreateRequest(ctx, req), ErrNotFound)
	})

	t.Run("InactiveCompany", func(t *testing.T) {
		require.NoError(t, db.SetCompanyActive(ctx, f.company.ID, false))
		defer func() {
			require.NoError(t, db.SetCompanyActive(ctx, f.company.ID, true))
		}()

		req := newTestRequest(f)
		assert.ErrorIs(t, db.CreateRequest(ctx, req), ErrInactiveCompany)
	})

	t.Run("MethodOfOtherCompany", func(t *testing.T) {
		other := newTestCompany(t, db, "Other Exchange")
		otherMethod := newTestMethod(t, db, other.ID, "Cash")

		req := newTestRequest(f)
		req.PaymentMethodID = otherMethod.ID
		assert.ErrorIs(t, db.CreateRequest(ctx, req), ErrNotFound)
	})
}

func TestResolveRequest(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)
	req := newTestRequest(f)
	require.NoError(t, db.CreateRequest(ctx, req))

	require.NoError(t, db.ResolveRequest(ctx, req.ID, models.StatusApproved, 777, "looks good"))

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, int64(777), got.ResolvedBy)
	assert.Equal(t, "looks good", got.AdminNote)
	assert.NotNil(t, got.ResolvedAt)
}

func TestResolveRequestTwice(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)
	req := newTestRequest(f)
	require.NoError(t, db.CreateRequest(ctx, req))

	require.NoError(t, db.ResolveRequest(ctx, req.ID, models.StatusApproved, 777, ""))

	// Second resolution loses, whatever the direction.
	err := db.ResolveRequest(ctx, req.ID, models.StatusRejected, 778, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, int64(777), got.ResolvedBy)
}

func TestResolveRequestInvalidStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.ResolveRequest(context.Background(), 1, models.StatusPending, 777, "")
	assert.Error(t, err)
}

func TestResolveRequestNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.ResolveRequest(context.Background(), 999, models.StatusApproved, 777, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentModeration(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "moderation.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	f := setupRequestFixture(t, db)
	req := newTestRequest(f)
	require.NoError(t, db.CreateRequest(ctx, req))

	const numAdmins = 10
	var wg sync.WaitGroup
	wg.Add(numAdmins)
	results := make(chan error, numAdmins)

	for i := 0; i < numAdmins; i++ {
		go func(adminID int64) {
			defer wg.Done()
			status := models.StatusApproved
			if adminID%2 == 0 {
				status = models.StatusRejected
			}
			results <- db.ResolveRequest(ctx, req.ID, status, adminID, "")
		}(int64(i + 1))
	}

	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyResolved)
			losers++
		}
	}

	assert.Equal(t, 1, winners, "exactly one admin wins the moderation race")
	assert.Equal(t, numAdmins-1, losers)

	got, err := db.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatusPending, got.Status)
}

func TestGetRequestsByStatusAndUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.CreateRequest(ctx, newTestRequest(f)))
	}

	resolved := newTestRequest(f)
	require.NoError(t, db.CreateRequest(ctx, resolved))
	require.NoError(t, db.ResolveRequest(ctx, resolved.ID, models.StatusApproved, 777, ""))

	pending, err := db.GetRequestsByStatus(ctx, models.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	limited, err := db.GetRequestsByStatus(ctx, models.StatusPending, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	mine, err := db.GetUserRequests(ctx, f.user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 4)

	n, err := db.CountRequestsByStatus(ctx, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetRequestsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	f := setupRequestFixture(t, db)
	require.NoError(t, db.CreateRequest(ctx, newTestRequest(f)))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	requests, err := db.GetRequestsByDateRange(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	requests, err = db.GetRequestsByDateRange(ctx, start.AddDate(0, 0, -2), end.AddDate(0, 0, -2))
	require.NoError(t, err)
	assert.Empty(t, requests)
}
