package market

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

// Listings returns every sale and running auction, or only sellerID's
// listings when sellerID is set.
func (m *Market) Listings(sellerID string) []listing.Listing {
	if sellerID != "" {
		return m.store.BySeller(sellerID)
	}
	var out []listing.Listing
	for _, s := range m.store.Sales() {
		out = append(out, s)
	}
	for _, a := range m.store.ActiveAuctions(m.clock.Now()) {
		out = append(out, a)
	}
	return out
}

// Listing returns a listing by id.
func (m *Market) Listing(id string) (listing.Listing, bool) {
	return m.store.Get(id)
}

// SignLines renders the listing sign at loc.
func (m *Market) SignLines(loc world.Location) (sign.Lines, bool) {
	l, ok := m.store.AtSign(loc)
	if !ok {
		return sign.Lines{}, false
	}
	return sign.Render(l, m.clock.Now()), true
}

// OwnBid is a running auction together with the viewer's own latest bid.
type OwnBid struct {
	Auction listing.Auction
	Bid     listing.Bid
}

// BidsBy lists running auctions playerID has bid on. Each auction comes
// without its bid list; only playerID's own latest bid is included.
func (m *Market) BidsBy(playerID string) []OwnBid {
	var out []OwnBid
	for _, a := range m.store.BidOnBy(playerID, m.clock.Now()) {
		own, _ := a.LatestBidBy(playerID)
		a.Bids = nil
		out = append(out, OwnBid{Auction: a, Bid: own})
	}
	return out
}

// Recent returns up to count ledger records, newest first, optionally only
// those involving playerID.
func (m *Market) Recent(count int, playerID string) []ledger.Record {
	return m.ledger.Recent(count, playerID)
}

// Transaction returns one ledger record.
func (m *Market) Transaction(id string) (ledger.Record, error) {
	rec, err := m.ledger.Get(id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Record{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return rec, err
}

// TransactionCount returns how many transaction ids have been issued.
func (m *Market) TransactionCount() int64 {
	return m.ledger.Count()
}

// RenameClaim sets the display name later trades record for the claim.
// Only the owner, or an admin, may rename.
func (m *Market) RenameClaim(ctx context.Context, actor Actor, claimID, name string) error {
	ctx, span := m.tracer.Start(ctx, "Market.RenameClaim", trace.WithAttributes(attribute.String("claim_id", claimID)))
	defer span.End()

	if m.names == nil {
		return fmt.Errorf("%w: claim naming is disabled", ErrValidation)
	}
	claim, ok, err := m.claims.Claim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("resolving claim: %w", err)
	}
	if !ok {
		return ErrNoClaim
	}
	if !claim.IsOwner(actor.ID) && !actor.Admin {
		return ErrNotOwner
	}
	if err := m.names.SetName(ctx, claimID, name); err != nil {
		return classify(err)
	}
	m.journal(ctx, event.New(claimID, event.ClaimNameChanged, event.ClaimNameData{
		ClaimID: claimID,
		Name:    name,
		By:      actor.ID,
	}, m.clock.Now()))
	return nil
}

// Events returns the journal of one listing, oldest first.
func (m *Market) Events(ctx context.Context, listingID string) ([]event.Event, error) {
	return m.events.Load(ctx, listingID)
}
