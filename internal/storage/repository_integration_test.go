package storage

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/db"
)

// Runs against a disposable Postgres database named by TEST_DATABASE_URL.
func newPostgresRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE change_requests, comments RESTART IDENTITY`)
	require.NoError(t, err)
	return NewRepository(pool)
}

func TestPostgres_Lifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()

	cr := seed(t, repo, 1, changerequest.TypeBudget, "pm-1")

	escalated, err := repo.UpdateStatus(ctx, cr.ID, changerequest.StatusPending, StatusPatch{
		Status:     changerequest.StatusPendingMainPMO,
		ReviewedBy: strPtr("sub-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, changerequest.StatusPendingMainPMO, escalated.Status)
	assert.Equal(t, "sub-1", *escalated.ReviewedBy)

	_, err = repo.UpdateStatus(ctx, cr.ID, changerequest.StatusPending, StatusPatch{Status: changerequest.StatusApproved})
	assert.ErrorIs(t, err, ErrStaleState)

	_, err = repo.UpdateStatus(ctx, 9999, changerequest.StatusPending, StatusPatch{Status: changerequest.StatusApproved})
	assert.ErrorIs(t, err, ErrChangeRequestNotFound)

	pending, err := repo.ListChangeRequests(ctx, ListFilter{Statuses: []changerequest.Status{changerequest.StatusPendingMainPMO}})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = repo.CreateComment(ctx, Comment{EntityType: EntityChangeRequest, EntityID: cr.ID, UserID: "sub-1", Content: "Status changed from Pending to PendingMainPMO", System: true})
	require.NoError(t, err)
	comments, err := repo.ListComments(ctx, EntityChangeRequest, cr.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}
