package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	coredatabase "github.com/m3rciful/coursebot/core/database"
)

func TestRunSeedersStopsAtFirstError(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	err := RunSeeders(context.Background(), "store",
		SeederFunc(func(_ context.Context, s Storage) error {
			if s != "store" {
				t.Fatalf("storage = %v", s)
			}
			order = append(order, 1)
			return nil
		}),
		nil,
		SeederFunc(func(context.Context, Storage) error { order = append(order, 2); return boom }),
		SeederFunc(func(context.Context, Storage) error { order = append(order, 3); return nil }),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("seeders ran as %v", order)
	}
}

func TestRunPropagatesConnectError(t *testing.T) {
	connErr := errors.New("refused")
	migrated := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, connErr },
		Migrate:    func(coredatabase.Config) error { migrated = true; return nil },
	})
	if !errors.Is(err, connErr) {
		t.Fatalf("err = %v, want %v", err, connErr)
	}
	if migrated {
		t.Fatal("migrations must not run without a connection")
	}
}

func TestRunWithoutDatabase(t *testing.T) {
	loggerReady := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		NoDatabase: true,
		LoggerInit: func(*coreconfig.Config) error { loggerReady = true; return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loggerReady {
		t.Fatal("logger was not initialised")
	}
	if res.DB != nil {
		t.Fatal("DB must be nil without a database")
	}
}

func TestRunRejectsNilConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("nil config must fail")
	}
}

func TestRunStopsOnLoggerError(t *testing.T) {
	boom := errors.New("log dir")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect after logger failure")
			return nil, nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
