package compliance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/neighborguard/core"
)

const sweepLockKey = "neighborguard:compliance:sweep"

// Scheduler periodically sweeps compliance then reinstates expired suspensions.
// Runs are serialized across instances by the Locker.
type Scheduler struct {
	engine   *Engine
	locker   core.Locker
	logger   core.Logger
	interval time.Duration
	lockTTL  time.Duration
}

func NewScheduler(engine *Engine, locker core.Locker, logger core.Logger, interval, lockTTL time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Scheduler{engine: engine, locker: locker, logger: logger, interval: interval, lockTTL: lockTTL}
}

// Run runs once right away, then every interval, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			if errors.Cause(err) == core.ErrNotObtained {
				s.logger.Info("compliance sweep already running elsewhere")
			} else {
				s.logger.Error("compliance sweep failed", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps and reinstates under the sweep lock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, err := s.locker.Obtain(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		return errors.Wrap(err, "obtaining sweep lock")
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			s.logger.Warn("releasing sweep lock", err)
		}
	}()

	if _, err := s.engine.PerformComplianceCheck(ctx); err != nil {
		return errors.Wrap(err, "performing compliance check")
	}
	if _, err := s.engine.ReinstateExpired(ctx); err != nil {
		return errors.Wrap(err, "reinstating officers")
	}
	return nil
}
