package collab

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/collabkit/server/internal/content"
	"github.com/collabkit/server/internal/storage"
)

// document is the single in-memory instance of one co-edited document. All
// operation submissions against it are serialized through mu.
type document struct {
	mu           sync.Mutex
	id           string
	loaded       bool
	content      *content.Node
	version      int64
	lastModified time.Time
	locks        map[string]*DocumentLock
	history      []*Operation
	redo         map[string][]*Operation
}

func newDocument(id string) *document {
	return &document{
		id:    id,
		locks: make(map[string]*DocumentLock),
		redo:  make(map[string][]*Operation),
	}
}

// ensureLoaded lazily pulls the stored snapshot on first reference. When no
// snapshot exists the document starts as an empty object at version 1.
// Caller must hold d.mu.
func (d *document) ensureLoaded(ctx context.Context, gw storage.Gateway) error {
	if d.loaded {
		return nil
	}

	if gw != nil && gw.IsConnected() {
		rec, err := gw.GetDocument(ctx, d.id)
		if err != nil {
			return err
		}
		if rec != nil {
			node := content.NewObject()
			if err := json.Unmarshal(rec.Content, node); err != nil {
				return err
			}
			d.content = node
			d.version = rec.Version
			d.lastModified = rec.UpdatedAt
			d.loaded = true
			return nil
		}
	}

	d.content = content.NewObject()
	d.version = 1
	d.lastModified = time.Now()
	d.loaded = true
	return nil
}

// appendHistory records an applied operation, keeping the most recent limit
// entries. Full history lives with the persistence gateway.
func (d *document) appendHistory(op *Operation, limit int) {
	d.history = append(d.history, op)
	if limit > 0 && len(d.history) > limit {
		d.history = d.history[len(d.history)-limit:]
	}
}

// lastOperationBy returns the most recent history entry authored by userID,
// or nil when the user has none.
func (d *document) lastOperationBy(userID string) *Operation {
	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].UserID == userID {
			return d.history[i]
		}
	}
	return nil
}

// releaseUserLocks drops every lock held by userID and returns the freed
// element paths. Caller must hold d.mu.
func (d *document) releaseUserLocks(userID string) []string {
	var freed []string
	for path, lock := range d.locks {
		if lock.UserID == userID {
			delete(d.locks, path)
			freed = append(freed, path)
		}
	}
	return freed
}

// lockKey joins an operation path into the element path locks are keyed by.
func lockKey(path []string) string {
	return strings.Join(path, ".")
}
