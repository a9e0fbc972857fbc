package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/profiler/profiler"
)

var _ profiler.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    profiler.Service
}

func Logging(logger *slog.Logger, svc profiler.Service) profiler.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Health(ctx context.Context) (resp profiler.HealthReport, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("health",
				slog.Int("passed", resp.Health.Passed),
				slog.Int("total", resp.Health.Total),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get health failed", args...)

			return
		}
		lm.logger.Info("Get health completed successfully", args...)
	}(time.Now())

	return lm.svc.Health(ctx)
}

func (lm *loggingMiddleware) Snapshot(ctx context.Context, index int) (resp profiler.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("index", index),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get snapshot failed", args...)

			return
		}
		lm.logger.Info("Get snapshot completed successfully", args...)
	}(time.Now())

	return lm.svc.Snapshot(ctx, index)
}

func (lm *loggingMiddleware) Power(ctx context.Context) (resp profiler.PowerStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("mode", resp.Mode),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get power status failed", args...)

			return
		}
		lm.logger.Info("Get power status completed successfully", args...)
	}(time.Now())

	return lm.svc.Power(ctx)
}

func (lm *loggingMiddleware) Dump(ctx context.Context) (resp profiler.Snapshot, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("snapshot",
				slog.Duration("timestamp", resp.Timestamp),
				slog.Int("tasks", resp.TaskCount),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Dump failed", args...)

			return
		}
		lm.logger.Info("Dump completed successfully", args...)
	}(time.Now())

	return lm.svc.Dump(ctx)
}
