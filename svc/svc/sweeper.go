package svc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"snipbin/metrics"
	"snipbin/svc/db"
	"snipbin/svc/util"
)

var sweeperRunning atomic.Bool

// StartSweeper launches the background expiration sweep: every interval it
// soft-deletes pastes older than the retention window. A failed cycle is
// logged and dropped; the next tick is the retry.
func StartSweeper(ctx context.Context, sqlDB *db.SQLite, interval, retention time.Duration) error {
	if !sweeperRunning.CompareAndSwap(false, true) {
		return errors.New("sweeper already running")
	}
	go runSweeper(ctx, sqlDB, interval, retention)
	return nil
}

func runSweeper(ctx context.Context, sqlDB *db.SQLite, interval, retention time.Duration) {
	defer sweeperRunning.Store(false)
	sweepID := util.NewRequestID()
	ctx = util.SetRequestID(ctx, sweepID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().
		Str("request_id", sweepID).
		Dur("interval", interval).
		Dur("retention", retention).
		Msg("expiration sweeper started")
	for {
		select {
		case <-ctx.Done():
			util.Info().
				Str("request_id", sweepID).
				Msg("expiration sweeper shutting down")
			return
		case <-ticker.C:
			expired, err := SweepExpired(ctx, sqlDB, retention)
			metrics.SweepCycles.Inc()
			if err != nil {
				metrics.SweepFailures.Inc()
				util.Error().
					Err(err).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("sweep cycle failed")
			} else if expired > 0 {
				metrics.PastesExpired.Add(float64(expired))
				util.Info().
					Int("expired", expired).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("sweep cycle completed")
			}
		}
	}
}

// SweepExpired runs one sweep cycle: cutoff is computed in UTC and every
// visible paste created before it is soft-deleted.
func SweepExpired(ctx context.Context, sqlDB *db.SQLite, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return sqlDB.ExpireOlderThan(ctx, cutoff)
}
