package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs stage start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info StageInfo, next Handler) error {
		logger.Info("stage started",
			slog.String("workflow_id", info.WorkflowID),
			slog.String("stage", info.Stage),
			slog.Int("round", info.Round),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("stage failed",
				slog.String("workflow_id", info.WorkflowID),
				slog.String("stage", info.Stage),
				slog.Int("round", info.Round),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("stage completed",
				slog.String("workflow_id", info.WorkflowID),
				slog.String("stage", info.Stage),
				slog.Int("round", info.Round),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
