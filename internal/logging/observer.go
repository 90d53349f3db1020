package logging

import (
	"context"
	"log/slog"
	"math"

	"fishschool/internal/sim"
)

type roundLogger struct {
	logger *slog.Logger
}

// RoundLogger logs one debug line per round, with phase timings at trace
// level. Non-finite barycentres are reported at warn level once per round.
func RoundLogger(logger *slog.Logger) sim.Observer {
	return roundLogger{logger: logger}
}

func (l roundLogger) ObserveRound(cfg sim.Config, stats sim.RoundStats) {
	ctx := context.Background()
	attrs := []slog.Attr{
		slog.Int("round", stats.Round),
		slog.String("schedule", cfg.Schedule.String()),
		slog.Float64("barycentre", stats.Barycentre),
		slog.Float64("max_diff", stats.MaxDiff),
	}
	if math.IsNaN(stats.Barycentre) || math.IsInf(stats.Barycentre, 0) || stats.NonFiniteWeights > 0 {
		l.logger.LogAttrs(ctx, slog.LevelWarn, "non-finite state",
			append(attrs, slog.Int("non_finite_weights", stats.NonFiniteWeights))...)
		return
	}
	l.logger.LogAttrs(ctx, slog.LevelDebug, "round complete", attrs...)
	l.logger.LogAttrs(ctx, LevelTrace, "round phases",
		slog.Int("round", stats.Round),
		slog.Duration("move", stats.Move),
		slog.Duration("eat", stats.Eat),
		slog.Duration("reduction", stats.Reduction),
		slog.Duration("collective", stats.Collective),
	)
}
