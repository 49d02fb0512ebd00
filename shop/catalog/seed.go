package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/coursebot/core/bootstrap"
	"github.com/m3rciful/coursebot/core/logger"
)

// SeedFile is the YAML layout of catalog.seed_file.
type SeedFile struct {
	Courses []SeedCourse `yaml:"courses"`
}

// SeedCourse is one catalog entry. Price is a string so YAML never turns it into a float.
type SeedCourse struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	MaterialURL string `yaml:"material_url"`
}

// LoadSeedFile parses and validates a seed file.
func LoadSeedFile(path string) ([]NewCourse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: read %s: %w", path, err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog seed: parse %s: %w", path, err)
	}
	out := make([]NewCourse, 0, len(file.Courses))
	for i, sc := range file.Courses {
		price, err := ParsePrice(sc.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog seed: course #%d: %w", i+1, err)
		}
		nc := NewCourse{
			Title:       sc.Title,
			Description: sc.Description,
			Price:       price,
			MaterialURL: sc.MaterialURL,
		}
		if err := nc.Validate(); err != nil {
			return nil, fmt.Errorf("catalog seed: course #%d: %w", i+1, err)
		}
		out = append(out, nc)
	}
	return out, nil
}

// Seeder fills an empty catalog from a YAML file. A non-empty catalog is left alone.
func Seeder(path string) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, storage bootstrap.Storage) error {
		if path == "" {
			return nil
		}
		repo, ok := storage.(Repository)
		if !ok {
			return errors.New("catalog seed: storage is not a catalog repository")
		}
		svc := NewService(repo)

		n, err := svc.Count(ctx)
		if err != nil {
			return fmt.Errorf("catalog seed: count: %w", err)
		}
		if n > 0 {
			logger.Debug(ctx, logger.ComponentSeed, "catalog.skip", slog.Int64("count", n))
			return nil
		}

		courses, err := LoadSeedFile(path)
		if err != nil {
			return err
		}
		for _, nc := range courses {
			if _, err := svc.Add(ctx, nc); err != nil {
				return fmt.Errorf("catalog seed: %w", err)
			}
		}
		logger.Info(ctx, logger.ComponentSeed, "catalog.seeded",
			slog.Int("count", len(courses)),
			slog.String("path", path),
		)
		return nil
	})
}
