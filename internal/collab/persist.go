package collab

import (
	"context"
	"encoding/json"
	"time"

	"github.com/collabkit/server/internal/storage"
	"go.uber.org/zap"
)

type persistJob struct {
	doc     *storage.DocumentRecord
	op      *storage.OperationRecord
	comment *storage.CommentRecord
}

// persistApplied queues the updated snapshot and operation log row. The
// apply and broadcast path never waits on storage, and a failed write never
// rolls back in-memory state.
func (s *Service) persistApplied(documentID string, snapshot interface{}, op *Operation) {
	if s.store == nil {
		return
	}

	contentJSON, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to encode document snapshot",
			zap.String("documentId", documentID), zap.Error(err))
		return
	}

	s.enqueue(persistJob{
		doc: &storage.DocumentRecord{
			ID:        documentID,
			Content:   contentJSON,
			Version:   op.Version,
			UpdatedAt: op.Timestamp,
		},
		op: &storage.OperationRecord{
			ID:         op.ID,
			DocumentID: documentID,
			UserID:     op.UserID,
			Type:       string(op.Type),
			Path:       op.Path,
			Value:      marshalRaw(op.Value),
			OldValue:   marshalRaw(op.OldValue),
			Version:    op.Version,
			CreatedAt:  op.Timestamp,
		},
	})
}

func (s *Service) persistComment(c *Comment) {
	if s.store == nil {
		return
	}

	s.enqueue(persistJob{
		comment: &storage.CommentRecord{
			ID:          c.ID,
			DocumentID:  c.DocumentID,
			ElementPath: c.ElementPath,
			UserID:      c.UserID,
			Text:        c.Text,
			Position:    marshalRaw(c.Position),
			CreatedAt:   c.CreatedAt,
		},
	})
}

func (s *Service) enqueue(job persistJob) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.persist <- job:
	default:
		s.logger.Warn("persistence queue full, dropping write")
	}
}

// runPersister drains the write queue in submission order, so snapshot
// upserts for one document reach storage in version order.
func (s *Service) runPersister() {
	defer s.wg.Done()

	for job := range s.persist {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if job.doc != nil {
			if err := s.store.SaveDocument(ctx, job.doc); err != nil {
				s.logger.Error("failed to persist document snapshot",
					zap.String("documentId", job.doc.ID),
					zap.Int64("version", job.doc.Version),
					zap.Error(err))
			}
		}
		if job.op != nil {
			if err := s.store.AppendOperation(ctx, job.op); err != nil {
				s.logger.Error("failed to persist operation",
					zap.String("documentId", job.op.DocumentID),
					zap.Int64("version", job.op.Version),
					zap.Error(err))
			}
		}
		if job.comment != nil {
			if err := s.store.SaveComment(ctx, job.comment); err != nil {
				s.logger.Error("failed to persist comment",
					zap.String("documentId", job.comment.DocumentID),
					zap.Error(err))
			}
		}

		cancel()
	}
}

func marshalRaw(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
