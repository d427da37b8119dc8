package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/popgate/core"
)

// CleanExpiredChallenges removes every challenge past its expiry.
func (g *Gateway) CleanExpiredChallenges(ctx context.Context) (int, error) {
	n, err := g.challenges.SweepChallenges(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep challenges: %v", core.ErrInternal, err)
	}
	return n, nil
}

// CleanExpiredSessions removes every session past its expiry.
func (g *Gateway) CleanExpiredSessions(ctx context.Context) (int, error) {
	n, err := g.sessions.SweepSessions(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep sessions: %v", core.ErrInternal, err)
	}
	return n, nil
}

// StartSweeper periodically removes expired challenges and sessions until
// ctx is cancelled. Expiry is also checked lazily on every access, so the
// sweeper only reclaims memory for entries nobody touches again.
func (g *Gateway) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := g.CleanExpiredChallenges(ctx); err != nil {
					fmt.Printf("Warning: challenge sweep failed: %v\n", err)
				}
				if _, err := g.CleanExpiredSessions(ctx); err != nil {
					fmt.Printf("Warning: session sweep failed: %v\n", err)
				}
			}
		}
	}()
}
