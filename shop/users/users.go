// Package users keeps the chat identities that talked to the bot.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/domain"
)

// Repository persists users. Lookups return domain.ErrNotFound.
type Repository interface {
	ByTelegramID(ctx context.Context, telegramID int64) (domain.User, error)
	ByID(ctx context.Context, id int64) (domain.User, error)
	// GetOrCreate inserts u unless its telegram id exists and returns the stored row.
	GetOrCreate(ctx context.Context, u domain.User) (user domain.User, created bool, err error)
	// PurchasedCourses lists distinct courses from the user's paid orders.
	PurchasedCourses(ctx context.Context, userID int64) ([]domain.Course, error)
}

// Service wraps the repository with input cleanup and logging.
type Service struct {
	repo Repository
}

// NewService wires a users service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate returns the user for telegramID, creating it on first contact.
// Existing users are never updated.
func (s *Service) GetOrCreate(ctx context.Context, telegramID int64, fullName, username string) (domain.User, error) {
	if telegramID <= 0 {
		return domain.User{}, domain.Invalid("telegram_id", "must be positive")
	}
	u := domain.User{
		TelegramID: telegramID,
		FullName:   strings.TrimSpace(fullName),
	}
	if h := strings.TrimPrefix(strings.TrimSpace(username), "@"); h != "" {
		u.Username = &h
	}
	if u.FullName == "" {
		u.FullName = fmt.Sprintf("user %d", telegramID)
	}

	user, created, err := s.repo.GetOrCreate(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("users: get or create %d: %w", telegramID, err)
	}
	if created {
		logger.Info(ctx, logger.ComponentUsers, "user.created",
			slog.Int64("user_id", user.ID),
			slog.Int64("chat_id", telegramID),
		)
	}
	return user, nil
}

// GetByTelegramID looks a user up by chat identity.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	u, err := s.repo.ByTelegramID(ctx, telegramID)
	if err != nil {
		return domain.User{}, fmt.Errorf("users: by telegram id %d: %w", telegramID, err)
	}
	return u, nil
}

// ChatID resolves the chat to notify for an internal user id.
func (s *Service) ChatID(ctx context.Context, userID int64) (int64, error) {
	u, err := s.repo.ByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("users: by id %d: %w", userID, err)
	}
	return u.TelegramID, nil
}

// PurchasedCourses returns what the user has paid for.
func (s *Service) PurchasedCourses(ctx context.Context, userID int64) ([]domain.Course, error) {
	courses, err := s.repo.PurchasedCourses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("users: purchased courses of %d: %w", userID, err)
	}
	return courses, nil
}
