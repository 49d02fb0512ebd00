// Package bootstrap brings up shared infrastructure in order: logger,
// database, migrations. Apps then seed reference data with RunSeeders.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	coredatabase "github.com/m3rciful/coursebot/core/database"
	"github.com/m3rciful/coursebot/core/logger"
)

// Options select the steps Run performs. The function fields replace the
// default step and exist for tests.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// NoDatabase stops after the logger, for in-memory storage.
	NoDatabase bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Result is the infrastructure Run brought up. DB is nil with NoDatabase.
type Result struct {
	DB *sqlx.DB
}

// Run executes the pipeline. A failed migration closes the connection it
// opened.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	opts.defaults()
	start := time.Now()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	res := &Result{}
	if !opts.NoDatabase {
		db, err := opts.Connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database: %w", err)
		}
		if err := opts.Migrate(opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations: %w", err)
		}
		res.DB = db
	}

	logger.Info(logger.Background(), logger.ComponentApp, "bootstrap.done",
		slog.Bool("database", res.DB != nil),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return res, nil
}
