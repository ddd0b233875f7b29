package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/fitgearzzz/storefront-auth/internal/config"
)

// HousekeeperMain periodically sweeps stale sessions and expired login
// attempts until the context is cancelled.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	sessionManager, _, closeFn, err := initSessionManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the session manager: %w", err)
	}

	defer closeFn()

	slogctx.Info(ctx, "Starting housekeeper job")

	c := time.Tick(cfg.Housekeeper.TriggerInterval)
	for {
		slogctx.Info(ctx, "Triggering session cleanup")
		if err := sessionManager.CleanupSessions(ctx, cfg.Housekeeper.IdleTimeout); err != nil {
			slogctx.Error(ctx, "Failed to clean up sessions", "error", err)
		}
		if err := sessionManager.CleanupLoginAttempts(ctx); err != nil {
			slogctx.Error(ctx, "Failed to clean up login attempts", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
