// Package storage implements the persistence gateway for the collaboration
// engine: document snapshots, the operation log, and comments.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// DocumentRecord is a persisted document snapshot.
type DocumentRecord struct {
	ID        string          `json:"id"`
	Content   json.RawMessage `json:"content"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OperationRecord is one row of the durable operation log.
type OperationRecord struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	UserID     string          `json:"userId"`
	Type       string          `json:"type"`
	Path       []string        `json:"path"`
	Value      json.RawMessage `json:"value,omitempty"`
	OldValue   json.RawMessage `json:"oldValue,omitempty"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// CommentRecord is a persisted comment. Comments are append-only.
type CommentRecord struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	ElementPath string          `json:"elementPath"`
	UserID      string          `json:"userId"`
	Text        string          `json:"text"`
	Position    json.RawMessage `json:"position,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Gateway is the durable storage backend for the collaboration engine.
// Writes on the hot path are issued asynchronously by the caller; a failed
// write never rolls back in-memory state.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	HealthCheck(ctx context.Context) (bool, error)

	// GetDocument returns the stored snapshot, or nil when the document has
	// never been persisted.
	GetDocument(ctx context.Context, id string) (*DocumentRecord, error)

	// SaveDocument upserts the snapshot for a document.
	SaveDocument(ctx context.Context, rec *DocumentRecord) error

	// AppendOperation appends one row to the operation log.
	AppendOperation(ctx context.Context, rec *OperationRecord) error

	// ListOperations returns the most recent operations for a document,
	// oldest first.
	ListOperations(ctx context.Context, documentID string, limit int) ([]*OperationRecord, error)

	// SaveComment appends a comment.
	SaveComment(ctx context.Context, rec *CommentRecord) error

	// ListComments returns every comment on a document, oldest first.
	ListComments(ctx context.Context, documentID string) ([]*CommentRecord, error)
}

// Config holds connection settings for storage adapters.
type Config struct {
	ConnectionString  string
	PoolMinConns      int32
	PoolMaxConns      int32
	ConnectionTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PoolMinConns:      2,
		PoolMaxConns:      10,
		ConnectionTimeout: 5 * time.Second,
	}
}
