// Package market admits listings, takes sealed bids and settles trades by
// moving currency and claim ownership together.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/economy"
	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/naming"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/sign"
)

const instrumentationName = "github.com/jensholdgaard/claim-market/internal/market"

// Actor is the player, or admin, on whose behalf an operation runs.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

// Observer hears about completed trades.
type Observer interface {
	OnTrade(ctx context.Context, rec ledger.Record)
}

// Deps are the collaborators a Market needs. Names and Observer are optional.
type Deps struct {
	Store    *listing.Store
	Ledger   *ledger.Ledger
	Claims   claims.Registry
	Currency economy.Currency
	Names    *naming.Service
	Events   event.Store
	Notifier notify.Notifier
	Display  notify.Display
	Observer Observer
	Clock    clock.Clock
	Config   config.MarketConfig

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Market serializes every state-changing operation behind one mutex, so a
// listing is never read and changed by two operations at once. Queries go
// straight to the listing store and ledger.
type Market struct {
	mu sync.Mutex

	store    *listing.Store
	ledger   *ledger.Ledger
	claims   claims.Registry
	currency economy.Currency
	names    *naming.Service
	events   event.Store
	notifier notify.Notifier
	display  notify.Display
	observer Observer
	clock    clock.Clock
	cfg      config.MarketConfig
	limits   sign.Limits

	logger *slog.Logger
	tracer trace.Tracer

	trades        metric.Int64Counter
	compensations metric.Int64Counter
	created       metric.Int64Counter
	bids          metric.Int64Counter
}

// New returns a Market wired to d.
func New(d Deps) (*Market, error) {
	switch {
	case d.Store == nil, d.Ledger == nil:
		return nil, errors.New("market: listing store and ledger are required")
	case d.Claims == nil:
		return nil, errors.New("market: claim registry is required")
	case d.Currency == nil:
		return nil, errors.New("market: currency service is required")
	case d.Events == nil, d.Notifier == nil, d.Display == nil, d.Clock == nil:
		return nil, errors.New("market: events, notifier, display and clock are required")
	}

	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := d.MeterProvider.Meter(instrumentationName)
	m := &Market{
		store:    d.Store,
		ledger:   d.Ledger,
		claims:   d.Claims,
		currency: d.Currency,
		names:    d.Names,
		events:   d.Events,
		notifier: d.Notifier,
		display:  d.Display,
		observer: d.Observer,
		clock:    d.Clock,
		cfg:      d.Config,
		limits:   sign.LimitsFrom(d.Config),
		logger:   d.Logger,
		tracer:   d.TracerProvider.Tracer(instrumentationName),
	}

	var err error
	if m.trades, err = meter.Int64Counter("market.trades",
		metric.WithDescription("Completed trades by type")); err != nil {
		return nil, fmt.Errorf("creating trades counter: %w", err)
	}
	if m.compensations, err = meter.Int64Counter("market.saga.compensations",
		metric.WithDescription("Trades rolled back, by failed step")); err != nil {
		return nil, fmt.Errorf("creating compensations counter: %w", err)
	}
	if m.created, err = meter.Int64Counter("market.listings.created",
		metric.WithDescription("Listings created by kind")); err != nil {
		return nil, fmt.Errorf("creating listings counter: %w", err)
	}
	if m.bids, err = meter.Int64Counter("market.bids",
		metric.WithDescription("Sealed bids recorded")); err != nil {
		return nil, fmt.Errorf("creating bids counter: %w", err)
	}
	return m, nil
}

// Limits returns the sign limits in force.
func (m *Market) Limits() sign.Limits { return m.limits }

// TradeResult describes a completed trade.
type TradeResult struct {
	TxID      string      `json:"tx_id,omitempty"` // empty if the ledger write failed
	Type      ledger.Type `json:"type"`
	ListingID string      `json:"listing_id"`
	SellerID  string      `json:"seller_id"`
	BuyerID   string      `json:"buyer_id"`
	Price     int64       `json:"price"`
}

// trade is a settlement waiting to run.
type trade struct {
	kind       ledger.Type
	listing    listing.Common
	claim      claims.Claim
	seller     ledger.Party
	buyer      ledger.Party
	price      int64
	winningBid int64
	bidCount   int
}

// settle runs the transfer saga for t, then grants the buyer claim capacity
// and writes the ledger. Only saga failures are returned: once money and
// claim have moved, the trade stands even if later bookkeeping fails.
func (m *Market) settle(ctx context.Context, t trade) (TradeResult, error) {
	ctx, span := m.tracer.Start(ctx, "Market.settle",
		trace.WithAttributes(
			attribute.String("listing_id", t.listing.ID),
			attribute.String("type", string(t.kind)),
			attribute.Int64("price", t.price),
		),
	)
	defer span.End()

	if err := m.runSaga(ctx, t.listing.ID, m.transferSteps(t.buyer.ID, t.seller.ID, t.claim.ID, t.price)); err != nil {
		return TradeResult{}, err
	}

	if err := m.claims.GrantBonusCapacity(ctx, t.buyer.ID, t.claim.Area()); err != nil {
		m.logger.ErrorContext(ctx, "failed to grant claim capacity to buyer",
			slog.String("player_id", t.buyer.ID),
			slog.Int("area", t.claim.Area()),
			slog.Any("error", err),
		)
	}

	rec := ledger.Record{
		Type:            t.kind,
		Seller:          t.seller,
		Buyer:           t.buyer,
		Price:           t.price,
		ClaimArea:       t.claim.Area(),
		ClaimDimensions: t.claim.Dimensions(),
		ClaimLocation:   t.listing.Anchor.String(),
		ClaimName:       m.claimName(ctx, t.claim.ID),
	}
	if t.kind == ledger.TypeAuction {
		rec.WinningBid = t.winningBid
		rec.BidCount = t.bidCount
	}
	stored, err := m.ledger.Record(ctx, rec)
	if err != nil {
		m.logger.ErrorContext(ctx, "trade completed but was not recorded",
			slog.String("listing_id", t.listing.ID),
			slog.Any("error", err),
		)
		stored = rec
		stored.Timestamp = m.clock.Now()
	}

	m.trades.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(t.kind))))
	m.journal(ctx, event.New(t.listing.ID, event.TradeCompleted, event.TradeData{
		TxID:     stored.ID,
		Type:     string(t.kind),
		SellerID: t.seller.ID,
		BuyerID:  t.buyer.ID,
		Price:    t.price,
	}, m.clock.Now()))
	if m.observer != nil {
		m.observer.OnTrade(ctx, stored)
	}

	m.logger.InfoContext(ctx, "trade completed",
		slog.String("listing_id", t.listing.ID),
		slog.String("tx_id", stored.ID),
		slog.String("type", string(t.kind)),
		slog.String("seller_id", t.seller.ID),
		slog.String("buyer_id", t.buyer.ID),
		slog.Int64("price", t.price),
	)
	return TradeResult{
		TxID:      stored.ID,
		Type:      t.kind,
		ListingID: t.listing.ID,
		SellerID:  t.seller.ID,
		BuyerID:   t.buyer.ID,
		Price:     t.price,
	}, nil
}

// removeLocked takes a listing off the market and clears its sign. The
// removal stands even if the snapshot cannot be written.
func (m *Market) removeLocked(ctx context.Context, c listing.Common, reason string) {
	if _, err := m.store.Remove(ctx, c.ID); err != nil && !errors.Is(err, listing.ErrNotFound) {
		m.logger.ErrorContext(ctx, "failed to persist listing removal",
			slog.String("listing_id", c.ID),
			slog.Any("error", err),
		)
	}
	m.display.Clear(ctx, c.Sign)
	m.journal(ctx, event.New(c.ID, event.ListingRemoved, event.ListingData{
		SellerID: c.SellerID,
		ClaimID:  c.ClaimID,
		Reason:   reason,
	}, m.clock.Now()))
}

// resolveClaim re-reads the claim behind a listing. It reports false when
// the claim is gone or the seller no longer owns it.
func (m *Market) resolveClaim(ctx context.Context, c listing.Common) (claims.Claim, bool, error) {
	claim, ok, err := m.claims.ClaimAt(ctx, c.Sign)
	if err != nil {
		return claims.Claim{}, false, fmt.Errorf("resolving claim: %w", err)
	}
	if !ok || !claim.IsOwner(c.SellerID) {
		return claim, false, nil
	}
	return claim, true, nil
}

func (m *Market) claimName(ctx context.Context, claimID string) string {
	if m.names == nil {
		return ""
	}
	return m.names.Name(ctx, claimID)
}

func (m *Market) journal(ctx context.Context, evts ...event.Event) {
	if err := m.events.Append(ctx, evts...); err != nil {
		m.logger.ErrorContext(ctx, "failed to append market event", slog.Any("error", err))
	}
}

func (m *Market) notify(ctx context.Context, playerID, format string, args ...any) {
	m.notifier.Notify(ctx, playerID, fmt.Sprintf(format, args...))
}

func newListingID(kind listing.Kind) string {
	return kind.String() + "_" + uuid.NewString()[:8]
}
