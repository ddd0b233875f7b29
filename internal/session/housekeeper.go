package session

import (
	"context"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// CleanupSessions deletes sessions that have expired or have been idle for
// longer than the given timeout.
func (m *Manager) CleanupSessions(ctx context.Context, idleTimeout time.Duration) error {
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		if time.Now().Before(s.Expiry) && time.Since(s.LastVisited) < idleTimeout {
			continue
		}
		if err := m.sessions.DeleteSession(ctx, s); err != nil {
			slogctx.Warn(ctx, "Could not delete stale session", "error", err)
			continue
		}
		slogctx.Info(ctx, "Deleted stale session")
	}

	return nil
}

// CleanupLoginAttempts drops expired pending login attempts. Backends with
// native key expiry make this a no-op.
func (m *Manager) CleanupLoginAttempts(ctx context.Context) error {
	return m.sessions.DeleteExpiredStates(ctx)
}
