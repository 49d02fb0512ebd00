package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/coursebot/core/logger"
)

// migrationFile is one *.up.sql file of the migrations directory.
type migrationFile struct {
	version uint64
	name    string
}

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	ctx := logger.Background()
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("migrate: resolve %s: %w", dir, err)
	}
	files, err := scanMigrations(abs)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(abs), cfg.URL())
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, logger.ComponentMigrate, "migrate.close",
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	from, err := version(m)
	if err != nil {
		return err
	}
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, logger.ComponentMigrate, "migrate.up",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", from),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("migrate: up: %w", upErr)
	}
	to, err := version(m)
	if err != nil {
		return err
	}

	applied := between(files, from, to)
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("applied", len(applied)),
		slog.Int("files_total", len(files)),
		slog.Duration("duration", took),
	}
	if preview, truncated := logger.SummarizeStrings(applied, 6); preview != "" {
		attrs = append(attrs, slog.String("files", preview), slog.Bool("files_truncated", truncated))
	}
	logger.Info(ctx, logger.ComponentMigrate, "migrate.up", attrs...)
	return nil
}

// version reads the schema version; an empty database is version 0.
func version(m *migrate.Migrate) (uint64, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migrate: version: %w", err)
	case dirty:
		return 0, fmt.Errorf("migrate: schema is dirty at version %d", v)
	}
	return uint64(v), nil
}

// scanMigrations lists the up files of dir ordered by version. Files without
// a numeric version prefix are ignored, as golang-migrate ignores them.
func scanMigrations(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, migrationFile{version: v, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// between names the files with from < version <= to.
func between(files []migrationFile, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if f.version > from && f.version <= to {
			out = append(out, f.name)
		}
	}
	return out
}
