package economy

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/event"
)

// Manager handles administrative balance operations.
type Manager struct {
	bank   Bank
	events event.Store
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
}

// NewManager returns a new Manager.
func NewManager(bank Bank, events event.Store, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		bank:   bank,
		events: events,
		clock:  clk,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/claim-market/internal/economy"),
	}
}

// Adjust awards a positive amount or deducts a negative one.
func (m *Manager) Adjust(ctx context.Context, playerID string, amount int64, reason string) error {
	switch {
	case amount > 0:
		return m.Award(ctx, playerID, amount, reason)
	case amount < 0:
		return m.Deduct(ctx, playerID, -amount, reason)
	default:
		return ErrInvalidAmount
	}
}

// Award adds currency to a player.
func (m *Manager) Award(ctx context.Context, playerID string, amount int64, reason string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Award",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	if err := m.bank.Deposit(ctx, playerID, amount); err != nil {
		return fmt.Errorf("awarding currency: %w", err)
	}
	m.journal(ctx, playerID, amount, reason)

	m.logger.InfoContext(ctx, "currency awarded",
		slog.String("player_id", playerID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
	return nil
}

// Deduct removes currency from a player. It fails with ErrInsufficientFunds
// rather than overdrawing.
func (m *Manager) Deduct(ctx context.Context, playerID string, amount int64, reason string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Deduct",
		trace.WithAttributes(
			attribute.String("player_id", playerID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	if err := m.bank.Withdraw(ctx, playerID, amount); err != nil {
		return fmt.Errorf("deducting currency: %w", err)
	}
	m.journal(ctx, playerID, -amount, reason)

	m.logger.InfoContext(ctx, "currency deducted",
		slog.String("player_id", playerID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
	)
	return nil
}

// Balance returns a player's balance.
func (m *Manager) Balance(ctx context.Context, playerID string) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Balance")
	defer span.End()

	return m.bank.Balance(ctx, playerID)
}

// Format renders an amount in the bank's currency.
func (m *Manager) Format(amount int64) string { return m.bank.Format(amount) }

func (m *Manager) journal(ctx context.Context, playerID string, amount int64, reason string) {
	evt := event.New(playerID, event.BalanceAdjusted, event.BalanceData{
		PlayerID: playerID,
		Amount:   amount,
		Reason:   reason,
	}, m.clock.Now())
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append balance adjusted event", slog.Any("error", err))
	}
}
