package buffer

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FlushLoop writes dirty, unpinned pages back to disk in the background,
// paced by limiter. It runs until ctx is cancelled and returns ctx.Err().
func (bpm *BufferPoolManager) FlushLoop(ctx context.Context, limiter *rate.Limiter) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := bpm.flushNextDirty(); err != nil {
			bpm.logger.Warn("background flush failed", zap.Error(err))
		}
	}
}
