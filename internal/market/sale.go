package market

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/ledger"
)

// Purchase buys a sale listing at its asking price. Nothing changes unless
// money and claim both move; a listing whose claim vanished or changed hands
// is removed and reported as ErrStaleListing.
func (m *Market) Purchase(ctx context.Context, buyer Actor, saleID string) (TradeResult, error) {
	ctx, span := m.tracer.Start(ctx, "Market.Purchase",
		trace.WithAttributes(
			attribute.String("listing_id", saleID),
			attribute.String("buyer_id", buyer.ID),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	sale, ok := m.store.Sale(saleID)
	if !ok {
		return TradeResult{}, fmt.Errorf("%w: sale %s", ErrNotFound, saleID)
	}
	if sale.SellerID == buyer.ID {
		return TradeResult{}, ErrSelfTrade
	}

	funded, err := m.currency.HasBalance(ctx, buyer.ID, sale.Price)
	if err != nil {
		return TradeResult{}, fmt.Errorf("checking balance: %w", err)
	}
	if !funded {
		return TradeResult{}, fmt.Errorf("%w: you need %s", ErrInsufficientFunds, m.currency.Format(sale.Price))
	}

	claim, valid, err := m.resolveClaim(ctx, sale.Common)
	if err != nil {
		return TradeResult{}, err
	}
	if !valid {
		m.logger.WarnContext(ctx, "removing stale sale",
			slog.String("listing_id", sale.ID),
			slog.String("claim_id", sale.ClaimID),
		)
		m.cancelSaleLocked(ctx, sale, "stale")
		return TradeResult{}, fmt.Errorf("%w: the claim is no longer available", ErrStaleListing)
	}

	res, err := m.settle(ctx, trade{
		kind:    ledger.TypeSale,
		listing: sale.Common,
		claim:   claim,
		seller:  ledger.Party{ID: sale.SellerID, Name: sale.SellerName},
		buyer:   ledger.Party{ID: buyer.ID, Name: buyer.Name},
		price:   sale.Price,
	})
	if err != nil {
		return TradeResult{}, err
	}

	m.removeLocked(ctx, sale.Common, "sold")
	m.notify(ctx, sale.SellerID, "%s purchased your claim for %s!", buyer.Name, m.currency.Format(sale.Price))
	return res, nil
}
