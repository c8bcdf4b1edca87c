package market

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/event"
)

// step is one action against an external system together with the action
// that reverses it.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSaga runs steps in order. When one fails, the completed steps are undone
// in reverse order and the failure is returned wrapped in ErrSagaStep. The
// step's own error is kept as text only, so the result matches no other
// failure class. A failing undo is logged and the remaining undos still run.
func (m *Market) runSaga(ctx context.Context, aggregateID string, steps []step) error {
	ctx, span := m.tracer.Start(ctx, "Market.runSaga", trace.WithAttributes(attribute.String("listing_id", aggregateID)))
	defer span.End()

	for i, s := range steps {
		err := s.do(ctx)
		if err == nil {
			continue
		}

		m.logger.WarnContext(ctx, "saga step failed, compensating",
			slog.String("listing_id", aggregateID),
			slog.String("step", s.name),
			slog.Any("error", err),
		)

		var undone []string
		for j := i - 1; j >= 0; j-- {
			prev := steps[j]
			if uerr := prev.undo(ctx); uerr != nil {
				m.logger.ErrorContext(ctx, "compensation failed",
					slog.String("listing_id", aggregateID),
					slog.String("step", prev.name),
					slog.Any("error", uerr),
				)
				continue
			}
			undone = append(undone, prev.name)
		}

		m.compensations.Add(ctx, 1, metric.WithAttributes(attribute.String("step", s.name)))
		m.journal(ctx, event.New(aggregateID, event.SagaCompensated, event.SagaCompensatedData{
			FailedStep: s.name,
			Undone:     undone,
			Error:      err.Error(),
		}, m.clock.Now()))

		span.RecordError(err)
		return fmt.Errorf("%w: %s: %v", ErrSagaStep, s.name, err)
	}
	return nil
}

// transferSteps moves amount from buyer to seller and the claim to buyer.
func (m *Market) transferSteps(buyerID, sellerID, claimID string, amount int64) []step {
	return []step{
		{
			name: "withdraw_buyer",
			do:   func(ctx context.Context) error { return m.currency.Withdraw(ctx, buyerID, amount) },
			undo: func(ctx context.Context) error { return m.currency.Deposit(ctx, buyerID, amount) },
		},
		{
			name: "deposit_seller",
			do:   func(ctx context.Context) error { return m.currency.Deposit(ctx, sellerID, amount) },
			undo: func(ctx context.Context) error { return m.currency.Withdraw(ctx, sellerID, amount) },
		},
		{
			name: "transfer_claim",
			do:   func(ctx context.Context) error { return m.claims.TransferOwnership(ctx, claimID, buyerID) },
			undo: func(context.Context) error { return nil },
		},
	}
}
