// Package naming stores the display names players give their claims.
package naming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNameTooLong is returned when a name exceeds the configured length.
var ErrNameTooLong = errors.New("claim name too long")

// Repository persists claim names keyed by claim id.
type Repository interface {
	// Name returns the name of a claim, or "" when it has none.
	Name(ctx context.Context, claimID string) (string, error)
	SetName(ctx context.Context, claimID, name string) error
	DeleteName(ctx context.Context, claimID string) error
}

// Service validates and stores claim names.
type Service struct {
	repo      Repository
	maxLength int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewService returns a Service that rejects names longer than maxLength runes.
func NewService(repo Repository, maxLength int, logger *slog.Logger, tp trace.TracerProvider) *Service {
	return &Service{
		repo:      repo,
		maxLength: maxLength,
		logger:    logger,
		tracer:    tp.Tracer("github.com/jensholdgaard/claim-market/internal/naming"),
	}
}

// Name returns the display name of a claim. Lookup failures are logged and
// treated as an unnamed claim.
func (s *Service) Name(ctx context.Context, claimID string) string {
	ctx, span := s.tracer.Start(ctx, "Service.Name", trace.WithAttributes(attribute.String("claim_id", claimID)))
	defer span.End()

	name, err := s.repo.Name(ctx, claimID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to look up claim name",
			slog.String("claim_id", claimID),
			slog.Any("error", err),
		)
		return ""
	}
	return name
}

// SetName names a claim. An empty name removes the current one.
func (s *Service) SetName(ctx context.Context, claimID, name string) error {
	ctx, span := s.tracer.Start(ctx, "Service.SetName", trace.WithAttributes(attribute.String("claim_id", claimID)))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		if err := s.repo.DeleteName(ctx, claimID); err != nil {
			return fmt.Errorf("clearing claim name: %w", err)
		}
		return nil
	}
	if utf8.RuneCountInString(name) > s.maxLength {
		return fmt.Errorf("%w: maximum %d characters", ErrNameTooLong, s.maxLength)
	}
	if err := s.repo.SetName(ctx, claimID, name); err != nil {
		return fmt.Errorf("setting claim name: %w", err)
	}

	s.logger.InfoContext(ctx, "claim renamed",
		slog.String("claim_id", claimID),
		slog.String("name", name),
	)
	return nil
}
