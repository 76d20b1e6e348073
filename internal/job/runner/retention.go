package runner

import (
	"context"

	"go.uber.org/zap"
)

// Sweep deletes finished jobs older than the retention window.
func (r *Runner) Sweep(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	cutoff := r.clock.Now(ctx).Add(-r.retention)
	deleted, err := r.repo.DeleteFinishedBefore(ctx, r.db, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info("swept finished jobs", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
