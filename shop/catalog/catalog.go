// Package catalog owns the list of sellable courses.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
)

const (
	maxTitleRunes = 255
	// NUMERIC(10,2) holds at most 8 integer digits.
	maxPrice = 99_999_999
)

// Repository persists courses. Get returns domain.ErrNotFound for unknown ids,
// Deactivate returns it too and is a no-op for inactive courses.
type Repository interface {
	ListActive(ctx context.Context) ([]domain.Course, error)
	Get(ctx context.Context, id int64) (domain.Course, error)
	Insert(ctx context.Context, c domain.Course) (domain.Course, error)
	Deactivate(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// NewCourse is the admin input for Add.
type NewCourse struct {
	Title       string
	Description string
	Price       decimal.Decimal
	MaterialURL string
}

// Validate checks the invariants an active course must hold.
func (n NewCourse) Validate() error {
	if err := ValidateTitle(n.Title); err != nil {
		return err
	}
	if err := ValidatePrice(n.Price); err != nil {
		return err
	}
	return ValidateMaterialURL(n.MaterialURL)
}

// ValidateTitle accepts a non-blank title of bounded length.
func ValidateTitle(raw string) error {
	title := strings.TrimSpace(raw)
	if title == "" {
		return domain.Invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return domain.Invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleRunes))
	}
	return nil
}

// ValidatePrice accepts positive amounts with at most two decimals.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return domain.Invalid("price", "must be positive")
	}
	if !p.Round(2).Equal(p) {
		return domain.Invalid("price", "at most two decimal places")
	}
	if p.GreaterThan(decimal.NewFromInt(maxPrice)) {
		return domain.Invalid("price", "too large")
	}
	return nil
}

// ValidateMaterialURL accepts absolute http(s) links.
func ValidateMaterialURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.Invalid("material_url", "must be an absolute http(s) link")
	}
	return nil
}

// ParsePrice reads admin input such as "1500", "1500.50" or "1 500,50".
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, domain.Invalid("price", "must not be empty")
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Invalid("price", "not a number")
	}
	if err := ValidatePrice(p); err != nil {
		return decimal.Zero, err
	}
	return p, nil
}

// Service implements the catalog operations.
type Service struct {
	repo Repository
}

// NewService wires a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListActive returns active courses ordered by id.
func (s *Service) ListActive(ctx context.Context) ([]domain.Course, error) {
	courses, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list active: %w", err)
	}
	return courses, nil
}

// Get returns a course regardless of its active flag.
func (s *Service) Get(ctx context.Context, id int64) (domain.Course, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("catalog: get %d: %w", id, err)
	}
	return c, nil
}

// Add validates the input and stores a new active course.
func (s *Service) Add(ctx context.Context, in NewCourse) (domain.Course, error) {
	if err := in.Validate(); err != nil {
		return domain.Course{}, err
	}
	c, err := s.repo.Insert(ctx, domain.Course{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		MaterialURL: strings.TrimSpace(in.MaterialURL),
		Active:      true,
	})
	if err != nil {
		return domain.Course{}, fmt.Errorf("catalog: add: %w", err)
	}
	logger.Info(ctx, logger.ComponentCatalog, "course.added",
		slog.Int64("course_id", c.ID),
		slog.String("amount", c.Price.StringFixed(2)),
	)
	return c, nil
}

// SoftDelete hides a course from the catalog. Deleting an inactive course succeeds.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("catalog: soft delete %d: %w", id, err)
	}
	logger.Info(ctx, logger.ComponentCatalog, "course.deactivated", slog.Int64("course_id", id))
	return nil
}

// Count reports how many courses exist, active or not.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
