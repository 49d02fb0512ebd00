package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
)

// Storage is what seeders write into. Each seeder asserts the repository
// interface it needs.
type Storage any

// Seeder loads reference data, typically only into an empty store.
type Seeder interface {
	Seed(ctx context.Context, storage Storage) error
}

// SeederFunc adapts a function to Seeder.
type SeederFunc func(ctx context.Context, storage Storage) error

func (f SeederFunc) Seed(ctx context.Context, storage Storage) error { return f(ctx, storage) }

// RunSeeders runs seeders in order. Nil entries are skipped; the first
// failure stops the run.
func RunSeeders(ctx context.Context, storage Storage, seeders ...Seeder) error {
	for i, s := range seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		err := s.Seed(ctx, storage)
		attrs := []slog.Attr{
			slog.Int("seeder", i),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			logger.Error(ctx, logger.ComponentSeed, "db.seed",
				append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...,
			)
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		logger.Debug(ctx, logger.ComponentSeed, "db.seed", append(attrs, slog.String("status", "ok"))...)
	}
	return nil
}
