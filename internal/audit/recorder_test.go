package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmo-suite/change-request-service/internal/cache"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

type fakeComments struct {
	got []storage.Comment
	err error
}

func (f *fakeComments) CreateComment(_ context.Context, c storage.Comment) (storage.Comment, error) {
	if f.err != nil {
		return storage.Comment{}, f.err
	}
	c.ID = int64(len(f.got) + 1)
	f.got = append(f.got, c)
	return c, nil
}

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	return log, buf
}

func entry() Entry {
	before := changerequest.ChangeRequest{ID: 3, Type: changerequest.TypeBudget, Status: changerequest.StatusPending, RequestedBy: "pm-1"}
	after := before
	after.Status = changerequest.StatusReturnedToSubPMO
	reason := "insufficient budget detail"
	after.RejectionReason = &reason
	return Entry{
		ChangeRequestID: 3,
		ActorID:         "main-1",
		Message:         changerequest.StatusChangeMessage(before.Status, after.Status),
		Before:          before,
		After:           after,
		Invalidate:      []string{"pending:a", "pending:b"},
	}
}

func TestRecorder_WritesCommentAndInvalidates(t *testing.T) {
	ctx := context.Background()
	comments := &fakeComments{}
	c := cache.NewMemory()
	require.NoError(t, c.Set(ctx, "pending:a", []byte("[]"), 0))
	require.NoError(t, c.Set(ctx, "pending:b", []byte("[]"), 0))
	log, _ := testLogger()

	rec := NewRecorder(comments, c, log)
	require.NoError(t, rec.Record(ctx, entry()))

	require.Len(t, comments.got, 1)
	got := comments.got[0]
	assert.Equal(t, storage.EntityChangeRequest, got.EntityType)
	assert.Equal(t, int64(3), got.EntityID)
	assert.Equal(t, "main-1", got.UserID)
	assert.Equal(t, "Status changed from Pending to ReturnedToSubPMO", got.Content)
	assert.True(t, got.System)

	var ops []map[string]any
	require.NoError(t, json.Unmarshal(got.Changes, &ops))
	paths := map[string]bool{}
	for _, op := range ops {
		paths[op["path"].(string)] = true
	}
	assert.True(t, paths["/status"])
	assert.True(t, paths["/rejectionReason"])

	for _, k := range []string{"pending:a", "pending:b"} {
		_, ok, _ := c.Get(ctx, k)
		assert.False(t, ok, k)
	}
}

func TestRecorder_CommentFailureStillInvalidates(t *testing.T) {
	ctx := context.Background()
	comments := &fakeComments{err: errors.New("db down")}
	c := cache.NewMemory()
	require.NoError(t, c.Set(ctx, "pending:a", []byte("[]"), 0))
	log, buf := testLogger()

	err := NewRecorder(comments, c, log).Record(ctx, entry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Contains(t, buf.String(), "failed to record status change comment")

	_, ok, _ := c.Get(ctx, "pending:a")
	assert.False(t, ok)
}

func TestRecorder_NilCache(t *testing.T) {
	comments := &fakeComments{}
	log, _ := testLogger()
	require.NoError(t, NewRecorder(comments, nil, log).Record(context.Background(), entry()))
	assert.Len(t, comments.got, 1)
}
