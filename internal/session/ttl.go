package session

import (
	"context"
	"time"

	"github.com/ashureev/advisor-chat/internal/store"
)

const defaultTTLWorkerInterval = time.Minute

// TTLConfig controls the idle sweeper.
type TTLConfig struct {
	// TTL is how long a conversation may sit idle before it is closed.
	TTL time.Duration
	// UserRetention prunes stored users not seen for this long. Zero disables pruning.
	UserRetention time.Duration
	// Interval between sweeps. Defaults to one minute.
	Interval time.Duration
}

// CleanupCallback is called for every conversation retired by the TTL worker.
type CleanupCallback func(key Key)

// RunTTLWorker periodically closes conversations idle longer than cfg.TTL and
// prunes long-inactive users from repo. It blocks until ctx is cancelled and
// then returns nil.
func RunTTLWorker(ctx context.Context, reg *Registry, repo store.Repository, cfg TTLConfig, onCleanup CleanupCallback) error {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultTTLWorkerInterval
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	reg.logger.Info("TTL worker started", "interval", cfg.Interval, "ttl", cfg.TTL)

	for {
		select {
		case <-ticker.C:
			cleanupExpired(reg, cfg.TTL, onCleanup)
			pruneUsers(ctx, reg, repo, cfg.UserRetention)
		case <-ctx.Done():
			reg.logger.Info("TTL worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func cleanupExpired(reg *Registry, ttl time.Duration, onCleanup CleanupCallback) {
	expired := reg.Sweep(ttl)
	if len(expired) == 0 {
		return
	}

	for _, key := range expired {
		reg.logger.Info("TTL worker closed idle conversation", "key", key.String())
		if onCleanup != nil {
			onCleanup(key)
		}
	}
	reg.logger.Info("TTL worker cleanup completed", "cleaned", len(expired))
}

func pruneUsers(ctx context.Context, reg *Registry, repo store.Repository, retention time.Duration) {
	if repo == nil || retention <= 0 {
		return
	}
	deleted, err := repo.DeleteInactiveUsers(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			reg.logger.Error("TTL worker failed to prune inactive users", "error", err)
		}
		return
	}
	if deleted > 0 {
		reg.logger.Info("TTL worker pruned inactive users", "count", deleted)
	}
}
