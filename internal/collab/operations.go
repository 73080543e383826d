package collab

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitOperation runs a client mutation through the operation processor:
// lock check, version assignment, structural apply, broadcast, then async
// persistence. Rejections and failures go back to the submitter only.
func (s *Service) SubmitOperation(ctx context.Context, connID, documentID string, draft *OperationDraft) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}
	s.processOperation(ctx, connID, userID, documentID, draft, true)
	return nil
}

// processOperation is the serialized apply path shared by direct submissions
// and the undo engine. clearRedo distinguishes fresh client edits, which
// invalidate the user's redo stack, from undo/redo resubmissions.
func (s *Service) processOperation(ctx context.Context, connID, userID, documentID string, draft *OperationDraft, clearRedo bool) *Operation {
	s.mu.RLock()
	doc := s.documents[documentID]
	s.mu.RUnlock()
	if doc == nil {
		s.sender.Send(connID, EventOperationFailed, map[string]interface{}{
			"documentId": documentID,
			"error":      "document not found",
		})
		return nil
	}

	doc.mu.Lock()
	if err := doc.ensureLoaded(ctx, s.store); err != nil {
		doc.mu.Unlock()
		s.sender.Send(connID, EventOperationFailed, map[string]interface{}{
			"documentId": documentID,
			"error":      err.Error(),
		})
		return nil
	}

	if lock := doc.locks[lockKey(draft.Path)]; lock != nil && lock.Type == LockWrite && lock.UserID != userID {
		doc.mu.Unlock()
		s.sender.Send(connID, EventOperationRejected, map[string]interface{}{
			"documentId": documentID,
			"reason":     "locked",
			"lockedBy":   lock.UserID,
		})
		return nil
	}

	op := &Operation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      draft.Type,
		Path:      draft.Path,
		Value:     draft.Value,
		OldValue:  draft.OldValue,
		Timestamp: s.clock(),
		Version:   doc.version + 1,
	}

	newRoot, displaced, err := applyOperation(doc.content, op)
	if err != nil {
		// The reserved version is discarded; the document is untouched.
		doc.mu.Unlock()
		s.sender.Send(connID, EventOperationFailed, map[string]interface{}{
			"documentId": documentID,
			"error":      err.Error(),
			"operation":  op,
		})
		return nil
	}
	op.OldValue = displaced

	doc.content = newRoot
	doc.version = op.Version
	doc.lastModified = op.Timestamp
	doc.appendHistory(op, s.opts.HistorySize)
	if clearRedo {
		delete(doc.redo, userID)
	}
	snapshot := doc.content.Interface()
	doc.mu.Unlock()

	s.broadcastDocument(ctx, documentID, "", EventOperationApplied, map[string]interface{}{
		"documentId": documentID,
		"operation":  op,
		"document": map[string]interface{}{
			"content": snapshot,
			"version": op.Version,
		},
	}, true)

	s.persistApplied(documentID, snapshot, op)

	s.logger.Debug("operation applied",
		zap.String("documentId", documentID),
		zap.String("userId", userID),
		zap.String("type", string(op.Type)),
		zap.Int64("version", op.Version))

	return op
}

// RequestLock grants or denies an exclusive claim on one element path. A
// write lock held by another user denies; anything else, including the
// requester's own prior lock, is overwritten.
func (s *Service) RequestLock(ctx context.Context, connID, documentID, elementPath string, lockType LockType) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}
	if lockType != LockRead && lockType != LockWrite {
		lockType = LockWrite
	}

	s.mu.RLock()
	doc := s.documents[documentID]
	s.mu.RUnlock()
	if doc == nil {
		return ErrNotJoined
	}

	doc.mu.Lock()
	if existing := doc.locks[elementPath]; existing != nil && existing.Type == LockWrite && existing.UserID != userID {
		doc.mu.Unlock()
		s.sender.Send(connID, EventLockDenied, map[string]interface{}{
			"documentId":  documentID,
			"elementPath": elementPath,
			"reason":      "already-locked",
			"lockedBy":    existing.UserID,
		})
		return nil
	}
	lock := &DocumentLock{
		UserID:      userID,
		ElementPath: elementPath,
		Type:        lockType,
		Timestamp:   s.clock(),
	}
	doc.locks[elementPath] = lock
	doc.mu.Unlock()

	s.sender.Send(connID, EventLockGranted, map[string]interface{}{
		"documentId": documentID,
		"lock":       lock,
	})
	s.broadcastDocument(ctx, documentID, connID, EventElementLocked, map[string]interface{}{
		"documentId":  documentID,
		"elementPath": elementPath,
		"userId":      userID,
		"lockType":    lockType,
	}, true)

	return nil
}

// ReleaseLock drops the caller's lock on an element path. Releasing a path
// locked by someone else, or not locked at all, is a no-op.
func (s *Service) ReleaseLock(ctx context.Context, connID, documentID, elementPath string) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	doc := s.documents[documentID]
	s.mu.RUnlock()
	if doc == nil {
		return ErrNotJoined
	}

	doc.mu.Lock()
	existing := doc.locks[elementPath]
	if existing == nil || existing.UserID != userID {
		doc.mu.Unlock()
		return nil
	}
	delete(doc.locks, elementPath)
	doc.mu.Unlock()

	s.broadcastDocument(ctx, documentID, "", EventElementUnlocked, map[string]interface{}{
		"documentId":  documentID,
		"elementPath": elementPath,
		"userId":      userID,
	}, true)

	return nil
}

// Undo derives the inverse of the user's most recent self-authored operation
// and resubmits it as a new forward-moving operation. History is never
// rewound.
func (s *Service) Undo(ctx context.Context, connID, documentID string) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	doc := s.documents[documentID]
	s.mu.RUnlock()
	if doc == nil {
		return ErrNotJoined
	}

	doc.mu.Lock()
	last := doc.lastOperationBy(userID)
	doc.mu.Unlock()
	if last == nil {
		s.sender.Send(connID, EventOperationFailed, map[string]interface{}{
			"documentId": documentID,
			"error":      "no-operations",
		})
		return nil
	}

	inverse := inverseOperation(last)
	if applied := s.processOperation(ctx, connID, userID, documentID, inverse, false); applied != nil {
		doc.mu.Lock()
		doc.redo[userID] = append(doc.redo[userID], last)
		doc.mu.Unlock()
	}

	return nil
}

// Redo reapplies the most recently undone operation. The redo stack is
// cleared whenever the user submits a fresh edit.
func (s *Service) Redo(ctx context.Context, connID, documentID string) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	doc := s.documents[documentID]
	s.mu.RUnlock()
	if doc == nil {
		return ErrNotJoined
	}

	doc.mu.Lock()
	stack := doc.redo[userID]
	if len(stack) == 0 {
		doc.mu.Unlock()
		s.sender.Send(connID, EventOperationFailed, map[string]interface{}{
			"documentId": documentID,
			"error":      "no-operations",
		})
		return nil
	}
	undone := stack[len(stack)-1]
	doc.redo[userID] = stack[:len(stack)-1]
	doc.mu.Unlock()

	s.processOperation(ctx, connID, userID, documentID, &OperationDraft{
		Type:     undone.Type,
		Path:     undone.Path,
		Value:    undone.Value,
		OldValue: undone.OldValue,
	}, false)

	return nil
}

// AddComment appends an annotation to a document element. Comments never
// touch locks or the version counter.
func (s *Service) AddComment(ctx context.Context, connID, documentID, elementPath, text string, position interface{}) error {
	userID, err := s.userFor(connID)
	if err != nil {
		return err
	}

	comment := &Comment{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		ElementPath: elementPath,
		UserID:      userID,
		Text:        text,
		Position:    position,
		CreatedAt:   s.clock(),
	}

	s.broadcastDocument(ctx, documentID, "", EventCommentAdded, map[string]interface{}{
		"documentId": documentID,
		"comment":    comment,
	}, true)

	s.persistComment(comment)

	return nil
}
