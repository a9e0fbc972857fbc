package profiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/profiler/pkg/kernel"
)

const (
	backgroundTaskName = "IdleMon"
	backgroundFrame    = 64
)

// Background is the lowest-priority task. Its run time counts as idle. With
// idle sleep enabled it drops into light sleep on every period.
type Background struct {
	power     *PowerController
	idleSleep bool
	logger    *slog.Logger
}

func NewBackground(power *PowerController, idleSleep bool, logger *slog.Logger) *Background {
	return &Background{
		power:     power,
		idleSleep: idleSleep,
		logger:    logger,
	}
}

func (b *Background) Run(ctx context.Context, task Executor, clock kernel.Clock, period time.Duration) error {
	last := clock.Now()
	for {
		if err := kernel.DelayUntil(ctx, clock, &last, period); err != nil {
			return nil
		}

		var err error
		task.Exec(func() {
			if err = task.Touch(backgroundFrame); err != nil {
				return
			}
			if !b.idleSleep {
				return
			}
			if serr := b.power.EnterSleep(ctx); serr != nil && ctx.Err() == nil {
				b.logger.Debug("light sleep failed", slog.Any("error", serr))
			}
		})
		if err != nil {
			return err
		}
	}
}
