package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/pkg/config"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
)

const runLockKey = "ues_sync:run_lock"

// GuardService enforces cross-run mutual exclusion. The primary flag is an
// advisory redis lock with a grace-period TTL so a crashed run lapses on its
// own; the persisted run table backs it up when redis is down. Force runs
// bypass every admission check, including an in-grace RUNNING record.
type GuardService struct {
	redis  *redis.Client
	runs   runStore
	cfg    config.SyncConfig
	logger *zap.Logger
}

// NewGuardService constructs GuardService. A nil redis client degrades to
// run-table-only checks.
func NewGuardService(rdb *redis.Client, runs runStore, cfg config.SyncConfig, logger *zap.Logger) *GuardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardService{redis: rdb, runs: runs, cfg: cfg, logger: logger}
}

// Acquire admits a new run or explains why one may not start. On success the
// returned run is already persisted in RUNNING state.
func (g *GuardService) Acquire(ctx context.Context, force bool) (*models.Run, error) {
	if !g.cfg.Enabled && !force {
		return nil, appErrors.ErrRunDisabled
	}

	latest, err := g.runs.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		if latest.Status == models.RunStatusRunning {
			// A crashed run lapses after the grace period.
			if time.Since(latest.StartedAt) < g.cfg.GracePeriod && !force {
				return nil, appErrors.ErrRunInProgress
			}
			if time.Since(latest.StartedAt) >= g.cfg.GracePeriod {
				g.logger.Warn("stale running flag lapsed", zap.String("run_id", latest.ID))
			}
		}
		if latest.FinishedAt != nil && time.Since(*latest.FinishedAt) < g.cfg.GracePeriod && !force {
			return nil, appErrors.ErrRunTooSoon
		}
	}

	if g.redis != nil {
		ok, err := g.redis.SetNX(ctx, runLockKey, time.Now().UTC().Format(time.RFC3339), g.cfg.GracePeriod).Result()
		if err != nil {
			g.logger.Warn("redis lock unavailable, relying on run table", zap.Error(err))
		} else if !ok && !force {
			return nil, appErrors.ErrRunInProgress
		}
	}

	run := &models.Run{Status: models.RunStatusRunning, Forced: force, StartedAt: time.Now().UTC()}
	if err := g.runs.Create(ctx, run); err != nil {
		g.unlock(ctx)
		return nil, err
	}
	return run, nil
}

// Release closes out the run record and drops the advisory lock.
func (g *GuardService) Release(ctx context.Context, run *models.Run, status models.RunStatus, logTail string) error {
	run.Status = status
	run.LogTail = logTail
	err := g.runs.Finish(ctx, run)
	g.unlock(ctx)
	return err
}

func (g *GuardService) unlock(ctx context.Context) {
	if g.redis == nil {
		return
	}
	if err := g.redis.Del(ctx, runLockKey).Err(); err != nil {
		g.logger.Warn("failed to drop run lock", zap.Error(err))
	}
}
