package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

const maxIDAttempts = 3

// Validate checks whether actor may list the claim at signLoc and returns
// that claim. The first failed rule wins, in this order: a claim exists,
// actor owns it, it is not an admin claim, it is not a subclaim, and it is
// not already listed. Admin claims have no owner, so they fail as not owned.
func (m *Market) Validate(ctx context.Context, actor Actor, signLoc world.Location) (claims.Claim, error) {
	ctx, span := m.tracer.Start(ctx, "Market.Validate",
		trace.WithAttributes(
			attribute.String("actor_id", actor.ID),
			attribute.String("sign", signLoc.Key()),
		),
	)
	defer span.End()

	claim, ok, err := m.claims.ClaimAt(ctx, signLoc)
	switch {
	case err != nil:
		return claims.Claim{}, fmt.Errorf("resolving claim: %w", err)
	case !ok:
		return claims.Claim{}, ErrNoClaim
	case !claim.IsOwner(actor.ID):
		return claims.Claim{}, ErrNotOwner
	case claim.IsAdmin():
		return claims.Claim{}, ErrAdminClaim
	case claim.IsSubclaim():
		return claims.Claim{}, ErrSubclaim
	case m.store.IsClaimListed(claim.LesserCorner()):
		return claims.Claim{}, ErrAlreadyListed
	case m.store.IsListingSign(signLoc):
		return claims.Claim{}, fmt.Errorf("%w: sign already holds a listing", ErrAlreadyListed)
	}
	return claim, nil
}

// CreateFromSign parses the text of a newly placed sign and lists the claim
// it stands in. Signs without a market header fail with ErrValidation.
func (m *Market) CreateFromSign(ctx context.Context, actor Actor, signLoc world.Location, lines []string) (listing.Listing, error) {
	req, err := sign.Parse(lines, m.limits)
	if err != nil {
		return nil, classify(err)
	}
	switch req.Kind {
	case listing.KindSale:
		return m.CreateSale(ctx, actor, signLoc, req.Sale.Price)
	case listing.KindAuction:
		return m.CreateAuction(ctx, actor, signLoc, req.Auction)
	default:
		return nil, classify(sign.ErrNotMarketSign)
	}
}

// CreateSale lists the claim at signLoc for a fixed price.
func (m *Market) CreateSale(ctx context.Context, seller Actor, signLoc world.Location, amount int64) (listing.Sale, error) {
	ctx, span := m.tracer.Start(ctx, "Market.CreateSale",
		trace.WithAttributes(
			attribute.String("seller_id", seller.ID),
			attribute.Int64("price", amount),
		),
	)
	defer span.End()

	if amount <= 0 {
		return listing.Sale{}, fmt.Errorf("%w: price must be positive", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	claim, err := m.Validate(ctx, seller, signLoc)
	if err != nil {
		return listing.Sale{}, err
	}

	var sale listing.Sale
	for attempt := 0; ; attempt++ {
		sale = listing.Sale{Common: m.common(listing.KindSale, seller, signLoc, claim), Price: amount}
		err = m.store.AddSale(ctx, sale)
		if !errors.Is(err, listing.ErrDuplicateID) || attempt == maxIDAttempts-1 {
			break
		}
	}
	if err != nil {
		return listing.Sale{}, classify(err)
	}

	m.display.Show(ctx, signLoc, sign.SaleLines(sale))
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "sale")))
	m.journal(ctx, event.New(sale.ID, event.ListingCreated, event.ListingData{
		Kind:     "sale",
		SellerID: seller.ID,
		ClaimID:  claim.ID,
		Price:    amount,
	}, sale.CreatedAt))

	m.logger.InfoContext(ctx, "sale listed",
		slog.String("listing_id", sale.ID),
		slog.String("seller_id", seller.ID),
		slog.String("claim_id", claim.ID),
		slog.Int64("price", amount),
	)
	return sale, nil
}

// CreateAuction lists the claim at signLoc for a sealed-bid auction.
func (m *Market) CreateAuction(ctx context.Context, seller Actor, signLoc world.Location, req sign.AuctionRequest) (listing.Auction, error) {
	ctx, span := m.tracer.Start(ctx, "Market.CreateAuction",
		trace.WithAttributes(
			attribute.String("seller_id", seller.ID),
			attribute.Int64("min_bid", req.MinBid),
			attribute.Int64("buy_now", req.BuyNow),
		),
	)
	defer span.End()

	switch {
	case req.MinBid <= 0:
		return listing.Auction{}, fmt.Errorf("%w: minimum bid must be positive", ErrValidation)
	case req.BuyNow != 0 && req.BuyNow <= req.MinBid:
		return listing.Auction{}, fmt.Errorf("%w: buy-now price must be higher than the minimum bid", ErrValidation)
	case req.Duration <= 0:
		return listing.Auction{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	claim, err := m.Validate(ctx, seller, signLoc)
	if err != nil {
		return listing.Auction{}, err
	}

	var a listing.Auction
	for attempt := 0; ; attempt++ {
		a = listing.Auction{
			Common: m.common(listing.KindAuction, seller, signLoc, claim),
			MinBid: req.MinBid,
			BuyNow: req.BuyNow,
		}
		a.ExpiresAt = a.CreatedAt.Add(req.Duration)
		err = m.store.AddAuction(ctx, a)
		if !errors.Is(err, listing.ErrDuplicateID) || attempt == maxIDAttempts-1 {
			break
		}
	}
	if err != nil {
		return listing.Auction{}, classify(err)
	}

	m.display.Show(ctx, signLoc, sign.AuctionLines(a, m.clock.Now()))
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "auction")))
	m.journal(ctx, event.New(a.ID, event.ListingCreated, event.ListingData{
		Kind:     "auction",
		SellerID: seller.ID,
		ClaimID:  claim.ID,
		MinBid:   a.MinBid,
		BuyNow:   a.BuyNow,
	}, a.CreatedAt))

	m.logger.InfoContext(ctx, "auction listed",
		slog.String("listing_id", a.ID),
		slog.String("seller_id", seller.ID),
		slog.String("claim_id", claim.ID),
		slog.Int64("min_bid", a.MinBid),
		slog.Int64("buy_now", a.BuyNow),
		slog.Time("expires_at", a.ExpiresAt),
	)
	return a, nil
}

func (m *Market) common(kind listing.Kind, seller Actor, signLoc world.Location, claim claims.Claim) listing.Common {
	return listing.Common{
		ID:         newListingID(kind),
		SellerID:   seller.ID,
		SellerName: seller.Name,
		Sign:       signLoc,
		ClaimID:    claim.ID,
		Anchor:     claim.LesserCorner(),
		Area:       claim.Area(),
		Dimensions: claim.Dimensions(),
		CreatedAt:  m.clock.Now(),
	}
}

// CancelListing handles a broken listing sign. Only the seller or an admin
// may cancel; the cancelled listing is returned.
func (m *Market) CancelListing(ctx context.Context, actor Actor, signLoc world.Location) (listing.Listing, error) {
	ctx, span := m.tracer.Start(ctx, "Market.CancelListing",
		trace.WithAttributes(
			attribute.String("actor_id", actor.ID),
			attribute.String("sign", signLoc.Key()),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.store.AtSign(signLoc)
	if !ok {
		return nil, fmt.Errorf("%w: no listing at %s", ErrNotFound, signLoc)
	}
	if l.Base().SellerID != actor.ID && !actor.Admin {
		return nil, ErrNotSeller
	}

	switch l := l.(type) {
	case listing.Sale:
		m.cancelSaleLocked(ctx, l, "cancelled")
	case listing.Auction:
		m.cancelAuctionLocked(ctx, l)
	}
	return l, nil
}

// CancelSale withdraws a sale. It reports false if no such sale exists.
func (m *Market) CancelSale(ctx context.Context, saleID string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Market.CancelSale", trace.WithAttributes(attribute.String("listing_id", saleID)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	sale, ok := m.store.Sale(saleID)
	if !ok {
		return false, nil
	}
	m.cancelSaleLocked(ctx, sale, "cancelled")
	return true, nil
}

func (m *Market) cancelSaleLocked(ctx context.Context, sale listing.Sale, reason string) {
	m.removeLocked(ctx, sale.Common, reason)
	m.journal(ctx, event.New(sale.ID, event.ListingCancelled, event.ListingData{
		Kind:     "sale",
		SellerID: sale.SellerID,
		ClaimID:  sale.ClaimID,
		Reason:   reason,
	}, m.clock.Now()))
	m.notify(ctx, sale.SellerID, "Your sale listing has been cancelled.")

	m.logger.InfoContext(ctx, "sale cancelled",
		slog.String("listing_id", sale.ID),
		slog.String("reason", reason),
	)
}
