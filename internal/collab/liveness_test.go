package collab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func memberStatus(t *testing.T, s *Service, wsID, userID string) Status {
	t.Helper()

	s.mu.RLock()
	ws := s.workspaces[wsID]
	s.mu.RUnlock()
	require.NotNil(t, ws)

	ws.mu.RLock()
	defer ws.mu.RUnlock()
	member, ok := ws.collaborators[userID]
	require.True(t, ok)
	return member.Status
}

func TestLivenessSweepDemotesIdleThenAway(t *testing.T) {
	s, sender := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	s.clock = func() time.Time { return now }

	join(t, s, "conn-a", "user-a", "ws1", "doc1")
	join(t, s, "conn-b", "user-b", "ws1", "doc1")
	sender.reset()

	// Inside the threshold nothing transitions.
	now = now.Add(time.Minute)
	s.sweepLiveness(ctx)
	require.Empty(t, sender.byEvent(EventUserStatusChange))

	// Past the idle threshold both members demote, one event each.
	now = now.Add(5 * time.Minute)
	s.sweepLiveness(ctx)
	require.Equal(t, StatusIdle, memberStatus(t, s, "ws1", "user-a"))
	changes := sender.byEvent(EventUserStatusChange)
	require.Len(t, changes, 4, "two transitions, each fanned out to two members")

	// A repeated sweep at the same offset emits nothing new.
	sender.reset()
	s.sweepLiveness(ctx)
	require.Empty(t, sender.byEvent(EventUserStatusChange))

	// Past the away threshold idle members demote again.
	now = now.Add(11 * time.Minute)
	s.sweepLiveness(ctx)
	require.Equal(t, StatusAway, memberStatus(t, s, "ws1", "user-a"))
	require.Equal(t, StatusAway, memberStatus(t, s, "ws1", "user-b"))
}

func TestActivityBumpsTimestampButNotStatus(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	s.clock = func() time.Time { return now }

	join(t, s, "conn-a", "user-a", "ws1", "doc1")

	now = now.Add(6 * time.Minute)
	s.sweepLiveness(ctx)
	require.Equal(t, StatusIdle, memberStatus(t, s, "ws1", "user-a"))

	// Cursor movement refreshes lastActivity but the status stays idle
	// until the client explicitly changes it.
	require.NoError(t, s.MoveCursor(ctx, "conn-a", "ws1", 1, 2, ""))
	require.Equal(t, StatusIdle, memberStatus(t, s, "ws1", "user-a"))

	// The refreshed timestamp keeps the member out of away territory.
	now = now.Add(12 * time.Minute)
	s.sweepLiveness(ctx)
	require.Equal(t, StatusIdle, memberStatus(t, s, "ws1", "user-a"))

	require.NoError(t, s.SetStatus(ctx, "conn-a", "ws1", StatusActive))
	require.Equal(t, StatusActive, memberStatus(t, s, "ws1", "user-a"))
}

func TestColorForUserIsStable(t *testing.T) {
	c1 := ColorForUser("user-a")
	c2 := ColorForUser("user-a")
	require.Equal(t, c1, c2)
	require.Contains(t, colorPalette, c1)

	seen := map[string]bool{}
	for _, id := range []string{"user-a", "user-b", "user-c", "user-d"} {
		seen[ColorForUser(id)] = true
	}
	require.GreaterOrEqual(t, len(seen), 2)
}
