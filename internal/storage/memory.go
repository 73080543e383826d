package storage

import (
	"context"
	"sync"
)

// MemoryGateway implements Gateway in process memory. It backs tests and
// single-node deployments that run without a DATABASE_URL.
type MemoryGateway struct {
	mu         sync.RWMutex
	connected  bool
	documents  map[string]*DocumentRecord
	operations map[string][]*OperationRecord
	comments   map[string][]*CommentRecord
}

// NewMemoryGateway creates an empty in-memory persistence gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		documents:  make(map[string]*DocumentRecord),
		operations: make(map[string][]*OperationRecord),
		comments:   make(map[string][]*CommentRecord),
	}
}

// Connect marks the gateway ready.
func (m *MemoryGateway) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Disconnect marks the gateway closed.
func (m *MemoryGateway) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns connection status.
func (m *MemoryGateway) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// HealthCheck always succeeds while connected.
func (m *MemoryGateway) HealthCheck(ctx context.Context) (bool, error) {
	if !m.IsConnected() {
		return false, ErrNotConnected
	}
	return true, nil
}

// GetDocument returns the stored snapshot, or nil when absent.
func (m *MemoryGateway) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, ErrNotConnected
	}

	rec, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// SaveDocument upserts a snapshot.
func (m *MemoryGateway) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}

	copied := *rec
	m.documents[rec.ID] = &copied
	return nil
}

// AppendOperation appends one operation log row.
func (m *MemoryGateway) AppendOperation(ctx context.Context, rec *OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}

	copied := *rec
	m.operations[rec.DocumentID] = append(m.operations[rec.DocumentID], &copied)
	return nil
}

// ListOperations returns the most recent operations, oldest first.
func (m *MemoryGateway) ListOperations(ctx context.Context, documentID string, limit int) ([]*OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, ErrNotConnected
	}

	ops := m.operations[documentID]
	if limit > 0 && len(ops) > limit {
		ops = ops[len(ops)-limit:]
	}

	out := make([]*OperationRecord, len(ops))
	for i, op := range ops {
		copied := *op
		out[i] = &copied
	}
	return out, nil
}

// SaveComment appends a comment.
func (m *MemoryGateway) SaveComment(ctx context.Context, rec *CommentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}

	copied := *rec
	m.comments[rec.DocumentID] = append(m.comments[rec.DocumentID], &copied)
	return nil
}

// ListComments returns every comment on a document, oldest first.
func (m *MemoryGateway) ListComments(ctx context.Context, documentID string) ([]*CommentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, ErrNotConnected
	}

	list := m.comments[documentID]
	out := make([]*CommentRecord, len(list))
	for i, c := range list {
		copied := *c
		out[i] = &copied
	}
	return out, nil
}

var _ Gateway = (*MemoryGateway)(nil)
