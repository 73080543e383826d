package storage_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/collabkit/server/internal/storage"
	"github.com/stretchr/testify/require"
)

func newConnectedMemory(t *testing.T) *storage.MemoryGateway {
	t.Helper()

	gw := storage.NewMemoryGateway()
	require.NoError(t, gw.Connect(context.Background()))

	return gw
}

func TestMemoryGateway_RequiresConnect(t *testing.T) {
	t.Parallel()

	gw := storage.NewMemoryGateway()

	_, err := gw.GetDocument(context.Background(), "doc-1")
	require.ErrorIs(t, err, storage.ErrNotConnected)

	ok, err := gw.HealthCheck(context.Background())
	require.False(t, ok)
	require.Error(t, err)
}

func TestMemoryGateway_DocumentRoundTrip(t *testing.T) {
	t.Parallel()

	gw := newConnectedMemory(t)
	ctx := context.Background()

	got, err := gw.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Nil(t, got)

	rec := &storage.DocumentRecord{
		ID:        "doc-1",
		Content:   json.RawMessage(`{"items":["x"]}`),
		Version:   2,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, gw.SaveDocument(ctx, rec))

	got, err = gw.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(2), got.Version)
	require.JSONEq(t, `{"items":["x"]}`, string(got.Content))

	// Upsert replaces the snapshot.
	rec.Version = 3
	require.NoError(t, gw.SaveDocument(ctx, rec))

	got, err = gw.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), got.Version)
}

func TestMemoryGateway_OperationLog(t *testing.T) {
	t.Parallel()

	gw := newConnectedMemory(t)
	ctx := context.Background()

	for v := int64(2); v <= 6; v++ {
		require.NoError(t, gw.AppendOperation(ctx, &storage.OperationRecord{
			ID:         string(rune('a' + v)),
			DocumentID: "doc-1",
			UserID:     "user-1",
			Type:       "update",
			Path:       []string{"title"},
			Version:    v,
			CreatedAt:  time.Now(),
		}))
	}

	ops, err := gw.ListOperations(ctx, "doc-1", 3)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	require.Equal(t, int64(4), ops[0].Version)
	require.Equal(t, int64(6), ops[2].Version)

	all, err := gw.ListOperations(ctx, "doc-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestMemoryGateway_Comments(t *testing.T) {
	t.Parallel()

	gw := newConnectedMemory(t)
	ctx := context.Background()

	require.NoError(t, gw.SaveComment(ctx, &storage.CommentRecord{
		ID:          "c-1",
		DocumentID:  "doc-1",
		ElementPath: "items",
		UserID:      "user-1",
		Text:        "first",
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, gw.SaveComment(ctx, &storage.CommentRecord{
		ID:          "c-2",
		DocumentID:  "doc-1",
		ElementPath: "items",
		UserID:      "user-2",
		Text:        "second",
		CreatedAt:   time.Now(),
	}))

	comments, err := gw.ListComments(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "first", comments[0].Text)
	require.Equal(t, "second", comments[1].Text)

	other, err := gw.ListComments(ctx, "doc-2")
	require.NoError(t, err)
	require.Empty(t, other)
}
