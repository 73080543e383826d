package collab

import (
	"context"
	"fmt"
)

// MoveCursor updates the collaborator's cursor position and bumps activity.
// The delta goes to everyone in the workspace except the sender.
func (s *Service) MoveCursor(ctx context.Context, connID, workspaceID string, x, y float64, elementID string) error {
	ws, userID, err := s.memberFor(connID, workspaceID)
	if err != nil {
		return err
	}

	cursor := &Cursor{X: x, Y: y, ElementID: elementID}

	ws.mu.Lock()
	member, ok := ws.collaborators[userID]
	if !ok {
		ws.mu.Unlock()
		return ErrNotJoined
	}
	member.Cursor = cursor
	member.LastActivity = s.clock()
	ws.mu.Unlock()

	s.broadcastWorkspace(ctx, ws, connID, EventCursorUpdate, map[string]interface{}{
		"workspaceId": workspaceID,
		"userId":      userID,
		"cursor":      cursor,
	}, true)

	return nil
}

// ChangeSelection replaces the collaborator's selection. A nil selection
// clears it.
func (s *Service) ChangeSelection(ctx context.Context, connID, workspaceID string, selection interface{}) error {
	ws, userID, err := s.memberFor(connID, workspaceID)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	member, ok := ws.collaborators[userID]
	if !ok {
		ws.mu.Unlock()
		return ErrNotJoined
	}
	member.Selection = selection
	member.LastActivity = s.clock()
	ws.mu.Unlock()

	s.broadcastWorkspace(ctx, ws, connID, EventSelectionUpdate, map[string]interface{}{
		"workspaceId": workspaceID,
		"userId":      userID,
		"selection":   selection,
	}, true)

	return nil
}

// SetStatus is the explicit client-driven status override. It is the only
// path that moves a collaborator back to active.
func (s *Service) SetStatus(ctx context.Context, connID, workspaceID string, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	ws, userID, err := s.memberFor(connID, workspaceID)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	member, ok := ws.collaborators[userID]
	if !ok {
		ws.mu.Unlock()
		return ErrNotJoined
	}
	member.Status = status
	member.LastActivity = s.clock()
	ws.mu.Unlock()

	s.broadcastWorkspace(ctx, ws, connID, EventUserStatusChange, map[string]interface{}{
		"workspaceId": workspaceID,
		"userId":      userID,
		"status":      status,
	}, true)

	return nil
}
