package market

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/sign"
)

// BidOutcome says what a successful PlaceBid did.
type BidOutcome int

const (
	// BidAccepted is a first bid from this bidder.
	BidAccepted BidOutcome = iota + 1
	// BidRaised replaces the bidder's earlier, lower bid.
	BidRaised
	// BoughtNow met the buy-now price and ended the auction.
	BoughtNow
)

func (o BidOutcome) String() string {
	switch o {
	case BidAccepted:
		return "accepted"
	case BidRaised:
		return "raised"
	case BoughtNow:
		return "bought_now"
	default:
		return "unknown"
	}
}

// BidResult is the outcome of PlaceBid. Trade is set only for BoughtNow.
// It never carries other bidders' amounts.
type BidResult struct {
	Outcome BidOutcome   `json:"-"`
	Amount  int64        `json:"amount"`
	Trade   *TradeResult `json:"trade,omitempty"`
}

// ExpiryOutcome says how ProcessExpired left an auction.
type ExpiryOutcome string

const (
	ExpiryNotDue    ExpiryOutcome = "not_due"   // still running, or already gone
	ExpirySettled   ExpiryOutcome = "settled"   // traded at the Vickrey price
	ExpiryNoBids    ExpiryOutcome = "no_bids"   // ended without bids
	ExpiryUnpaid    ExpiryOutcome = "unpaid"    // winner could not cover the price
	ExpiryStale     ExpiryOutcome = "stale"     // claim vanished or changed hands
	ExpiryFailed    ExpiryOutcome = "failed"    // transfer rolled back
	ExpiryCancelled ExpiryOutcome = "cancelled" // seller or admin cancelled
)

// PlaceBid records a sealed bid. A bid at or above the buy-now price settles
// the auction at once, at the buy-now price. Funds are checked, not held.
func (m *Market) PlaceBid(ctx context.Context, bidder Actor, auctionID string, amount int64) (BidResult, error) {
	ctx, span := m.tracer.Start(ctx, "Market.PlaceBid",
		trace.WithAttributes(
			attribute.String("listing_id", auctionID),
			attribute.String("bidder_id", bidder.ID),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.store.Auction(auctionID)
	if !ok {
		return BidResult{}, fmt.Errorf("%w: auction %s", ErrNotFound, auctionID)
	}
	if a.SellerID == bidder.ID {
		return BidResult{}, ErrSelfTrade
	}
	if a.Ended || a.Expired(m.clock.Now()) {
		return BidResult{}, ErrAuctionEnded
	}
	if amount < a.MinBid {
		return BidResult{}, fmt.Errorf("%w: bid at least %s", ErrBidTooLow, m.currency.Format(a.MinBid))
	}

	funded, err := m.currency.HasBalance(ctx, bidder.ID, amount)
	if err != nil {
		return BidResult{}, fmt.Errorf("checking balance: %w", err)
	}
	if !funded {
		return BidResult{}, fmt.Errorf("%w: you need %s", ErrInsufficientFunds, m.currency.Format(amount))
	}

	if a.HasBuyNow() && amount >= a.BuyNow {
		res, err := m.buyNowLocked(ctx, bidder, a)
		if err != nil {
			return BidResult{}, err
		}
		return BidResult{Outcome: BoughtNow, Amount: a.BuyNow, Trade: &res}, nil
	}

	outcome := BidAccepted
	if prior, ok := a.LatestBidBy(bidder.ID); ok {
		if amount <= prior.Amount {
			return BidResult{}, fmt.Errorf("%w of %s", ErrBidNotHigher, m.currency.Format(prior.Amount))
		}
		outcome = BidRaised
	}

	bid := listing.Bid{
		BidderID:   bidder.ID,
		BidderName: bidder.Name,
		Amount:     amount,
		PlacedAt:   m.clock.Now(),
	}
	if _, err := m.store.AppendBid(ctx, a.ID, bid); err != nil {
		return BidResult{}, classify(err)
	}

	m.bids.Add(ctx, 1)
	m.journal(ctx, event.New(a.ID, event.BidPlaced, event.BidPlacedData{
		BidderID: bidder.ID,
		Amount:   amount,
	}, bid.PlacedAt))

	m.logger.InfoContext(ctx, "bid placed",
		slog.String("listing_id", a.ID),
		slog.String("bidder_id", bidder.ID),
		slog.String("outcome", outcome.String()),
	)
	return BidResult{Outcome: outcome, Amount: amount}, nil
}

func (m *Market) buyNowLocked(ctx context.Context, buyer Actor, a listing.Auction) (TradeResult, error) {
	claim, valid, err := m.resolveClaim(ctx, a.Common)
	if err != nil {
		return TradeResult{}, err
	}
	if !valid {
		m.logger.WarnContext(ctx, "cancelling stale auction on buy-now",
			slog.String("listing_id", a.ID),
			slog.String("claim_id", a.ClaimID),
		)
		m.cancelAuctionLocked(ctx, a)
		return TradeResult{}, fmt.Errorf("%w: the claim is no longer available", ErrStaleListing)
	}

	res, err := m.settle(ctx, trade{
		kind:    ledger.TypeBuyNow,
		listing: a.Common,
		claim:   claim,
		seller:  ledger.Party{ID: a.SellerID, Name: a.SellerName},
		buyer:   ledger.Party{ID: buyer.ID, Name: buyer.Name},
		price:   a.BuyNow,
	})
	if err != nil {
		return TradeResult{}, err
	}

	m.endAuctionLocked(ctx, a, event.AuctionEndedData{
		Outcome:  "bought_now",
		WinnerID: buyer.ID,
		Price:    a.BuyNow,
		Bids:     len(a.Bids),
	})
	price := m.currency.Format(a.BuyNow)
	m.notify(ctx, a.SellerID, "%s bought your claim instantly for %s!", buyer.Name, price)
	for _, id := range a.Bidders() {
		if id != buyer.ID {
			m.notify(ctx, id, "An auction you bid on was ended by a buy-now purchase.")
		}
	}
	return res, nil
}

// ProcessExpired settles one auction past its deadline. It is safe to call
// again for the same auction: once an auction has ended it is gone from the
// store and later calls report ExpiryNotDue.
func (m *Market) ProcessExpired(ctx context.Context, auctionID string) (ExpiryOutcome, error) {
	ctx, span := m.tracer.Start(ctx, "Market.ProcessExpired", trace.WithAttributes(attribute.String("listing_id", auctionID)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.store.Auction(auctionID)
	if !ok || a.Ended || !a.Expired(m.clock.Now()) {
		return ExpiryNotDue, nil
	}

	settlement, hasBids := Settle(a, m.cfg.SettleOnLatestBids)
	if !hasBids {
		m.endAuctionLocked(ctx, a, event.AuctionEndedData{Outcome: string(ExpiryNoBids)})
		m.notify(ctx, a.SellerID, "Your auction ended with no bids.")
		return ExpiryNoBids, nil
	}

	claim, valid, err := m.resolveClaim(ctx, a.Common)
	if err != nil {
		return ExpiryNotDue, err
	}
	if !valid {
		m.logger.WarnContext(ctx, "expired auction's claim is gone or changed hands",
			slog.String("listing_id", a.ID),
			slog.String("claim_id", a.ClaimID),
		)
		m.endAuctionLocked(ctx, a, event.AuctionEndedData{Outcome: string(ExpiryStale), Bids: len(a.Bids)})
		m.notify(ctx, a.SellerID, "Your auction ended but the claim is no longer yours to sell.")
		return ExpiryStale, nil
	}

	winner := settlement.Winner
	funded, err := m.currency.HasBalance(ctx, winner.BidderID, settlement.Price)
	if err != nil {
		return ExpiryNotDue, fmt.Errorf("checking balance: %w", err)
	}
	if !funded {
		m.logger.WarnContext(ctx, "auction winner cannot pay",
			slog.String("listing_id", a.ID),
			slog.String("winner_id", winner.BidderID),
			slog.Int64("price", settlement.Price),
		)
		m.endAuctionLocked(ctx, a, event.AuctionEndedData{
			Outcome:  string(ExpiryUnpaid),
			WinnerID: winner.BidderID,
			Price:    settlement.Price,
			Bids:     settlement.BidCount,
		})
		m.notify(ctx, a.SellerID, "Your auction ended but the winner couldn't pay. Auction cancelled.")
		m.notify(ctx, winner.BidderID, "You won an auction but could not pay %s. The auction was cancelled.", m.currency.Format(settlement.Price))
		return ExpiryUnpaid, nil
	}

	res, err := m.settle(ctx, trade{
		kind:       ledger.TypeAuction,
		listing:    a.Common,
		claim:      claim,
		seller:     ledger.Party{ID: a.SellerID, Name: a.SellerName},
		buyer:      ledger.Party{ID: winner.BidderID, Name: winner.BidderName},
		price:      settlement.Price,
		winningBid: settlement.HighestBid,
		bidCount:   settlement.BidCount,
	})
	if err != nil {
		m.endAuctionLocked(ctx, a, event.AuctionEndedData{
			Outcome:  string(ExpiryFailed),
			WinnerID: winner.BidderID,
			Price:    settlement.Price,
			Bids:     settlement.BidCount,
		})
		m.notify(ctx, a.SellerID, "Your auction ended but the transfer failed. Transaction cancelled.")
		m.notify(ctx, winner.BidderID, "You won an auction but the transfer failed. Transaction cancelled.")
		return ExpiryFailed, err
	}

	m.endAuctionLocked(ctx, a, event.AuctionEndedData{
		Outcome:  string(ExpirySettled),
		WinnerID: winner.BidderID,
		Price:    res.Price,
		Bids:     settlement.BidCount,
	})
	price := m.currency.Format(res.Price)
	m.notify(ctx, winner.BidderID, "You won the auction! You paid %s.", price)
	m.notify(ctx, a.SellerID, "%s won your auction for %s!", winner.BidderName, price)
	for _, id := range a.Bidders() {
		if id != winner.BidderID {
			m.notify(ctx, id, "An auction you bid on has ended. You did not win.")
		}
	}
	return ExpirySettled, nil
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Processed int
	Settled   int
	Failed    int
}

// SweepExpired drives every expired auction through ProcessExpired. One
// auction's failure is logged and does not stop the others.
func (m *Market) SweepExpired(ctx context.Context) SweepReport {
	ctx, span := m.tracer.Start(ctx, "Market.SweepExpired")
	defer span.End()

	var rep SweepReport
	for _, a := range m.store.ExpiredAuctions(m.clock.Now()) {
		outcome, err := m.ProcessExpired(ctx, a.ID)
		if err != nil {
			rep.Failed++
			m.logger.ErrorContext(ctx, "failed to settle expired auction",
				slog.String("listing_id", a.ID),
				slog.String("outcome", string(outcome)),
				slog.Any("error", err),
			)
		}
		if outcome == ExpiryNotDue {
			continue
		}
		rep.Processed++
		if outcome == ExpirySettled {
			rep.Settled++
		}
	}
	return rep
}

// CancelAuction ends an auction without a trade and tells the seller and
// every bidder. It reports false if no such auction exists.
func (m *Market) CancelAuction(ctx context.Context, auctionID string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Market.CancelAuction", trace.WithAttributes(attribute.String("listing_id", auctionID)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.store.Auction(auctionID)
	if !ok {
		return false, nil
	}
	m.cancelAuctionLocked(ctx, a)
	return true, nil
}

func (m *Market) cancelAuctionLocked(ctx context.Context, a listing.Auction) {
	m.endAuctionLocked(ctx, a, event.AuctionEndedData{Outcome: string(ExpiryCancelled), Bids: len(a.Bids)})
	m.journal(ctx, event.New(a.ID, event.ListingCancelled, event.ListingData{
		Kind:     "auction",
		SellerID: a.SellerID,
		ClaimID:  a.ClaimID,
	}, m.clock.Now()))

	m.notify(ctx, a.SellerID, "Your auction has been cancelled.")
	for _, id := range a.Bidders() {
		m.notify(ctx, id, "An auction you bid on has been cancelled by the seller.")
	}

	m.logger.InfoContext(ctx, "auction cancelled",
		slog.String("listing_id", a.ID),
		slog.Int("bids", len(a.Bids)),
	)
}

func (m *Market) endAuctionLocked(ctx context.Context, a listing.Auction, data event.AuctionEndedData) {
	m.removeLocked(ctx, a.Common, data.Outcome)
	m.journal(ctx, event.New(a.ID, event.AuctionEnded, data, m.clock.Now()))
}

// RefreshDisplays rewrites the sign of every running auction so its time
// remaining stays current. No listing state changes.
func (m *Market) RefreshDisplays(ctx context.Context) int {
	ctx, span := m.tracer.Start(ctx, "Market.RefreshDisplays")
	defer span.End()

	now := m.clock.Now()
	active := m.store.ActiveAuctions(now)
	for _, a := range active {
		m.display.Show(ctx, a.Sign, sign.AuctionLines(a, now))
	}
	return len(active)
}
