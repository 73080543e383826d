package collab

import "context"

// sweepLiveness demotes collaborators whose last activity is past the idle
// or away threshold. Transitions only ever move downward: activity events or
// an explicit status change are the only way back to active.
func (s *Service) sweepLiveness(ctx context.Context) {
	s.mu.RLock()
	workspaces := make([]*workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		workspaces = append(workspaces, ws)
	}
	s.mu.RUnlock()

	now := s.clock()

	for _, ws := range workspaces {
		type transition struct {
			userID string
			status Status
		}
		var changed []transition

		ws.mu.Lock()
		for _, member := range ws.collaborators {
			idle := now.Sub(member.LastActivity)
			switch {
			case member.Status == StatusIdle && idle > s.opts.AwayThreshold:
				member.Status = StatusAway
				changed = append(changed, transition{member.UserID, StatusAway})
			case member.Status == StatusActive && idle > s.opts.IdleThreshold:
				member.Status = StatusIdle
				changed = append(changed, transition{member.UserID, StatusIdle})
			}
		}
		ws.mu.Unlock()

		for _, t := range changed {
			s.broadcastWorkspace(ctx, ws, "", EventUserStatusChange, map[string]interface{}{
				"workspaceId": ws.id,
				"userId":      t.userID,
				"status":      t.status,
			}, true)
		}
	}
}
