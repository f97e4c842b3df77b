package database

import (
	"context"
	"testing"

	"finbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndCloseComplaint(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := newTestUser(100, "C-2025-000001")
	require.NoError(t, db.CreateUser(ctx, user))

	c := &models.Complaint{UserID: user.ID, Text: "deposit not credited"}
	require.NoError(t, db.CreateComplaint(ctx, c))
	assert.NotZero(t, c.ID)
	assert.Equal(t, models.ComplaintOpen, c.Status)

	require.NoError(t, db.CloseComplaint(ctx, c.ID, 777))

	got, err := db.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintClosed, got.Status)
	assert.Equal(t, int64(777), got.ResolvedBy)
	assert.NotNil(t, got.ResolvedAt)
}

func TestCreateComplaintUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	c := &models.Complaint{UserID: 999, Text: "text"}
	assert.ErrorIs(t, db.CreateComplaint(context.Background(), c), ErrNotFound)
}

func TestCloseComplaintTwice(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := newTestUser(100, "C-2025-000001")
	require.NoError(t, db.CreateUser(ctx, user))

	c := &models.Complaint{UserID: user.ID, Text: "issue"}
	require.NoError(t, db.CreateComplaint(ctx, c))

	require.NoError(t, db.CloseComplaint(ctx, c.ID, 777))

	err := db.CloseComplaint(ctx, c.ID, 778)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	got, err := db.GetComplaint(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(777), got.ResolvedBy)
}

func TestCloseComplaintNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.CloseComplaint(context.Background(), 999, 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetComplaintsByStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := newTestUser(100, "C-2025-000001")
	require.NoError(t, db.CreateUser(ctx, user))

	for i := 0; i < 3; i++ {
		require.NoError(t, db.CreateComplaint(ctx, &models.Complaint{UserID: user.ID, Text: "issue"}))
	}
	closed := &models.Complaint{UserID: user.ID, Text: "old issue"}
	require.NoError(t, db.CreateComplaint(ctx, closed))
	require.NoError(t, db.CloseComplaint(ctx, closed.ID, 777))

	open, err := db.GetComplaintsByStatus(ctx, models.ComplaintOpen, 0)
	require.NoError(t, err)
	assert.Len(t, open, 3)

	n, err := db.CountComplaintsByStatus(ctx, models.ComplaintClosed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
