package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/world"
)

// Errors returned by Store operations.
var (
	ErrNotFound      = errors.New("listing not found")
	ErrDuplicateID   = errors.New("listing id already exists")
	ErrSignInUse     = errors.New("sign location already holds a listing")
	ErrClaimListed   = errors.New("claim is already listed")
	ErrAuctionClosed = errors.New("auction has ended")
	ErrPersistence   = errors.New("persisting listings")
)

// Repository is the durable home of listing snapshots. Each Save call
// replaces the full set for that kind.
type Repository interface {
	LoadSales(ctx context.Context) ([]Sale, error)
	SaveSales(ctx context.Context, sales []Sale) error
	LoadAuctions(ctx context.Context) ([]Auction, error)
	SaveAuctions(ctx context.Context, auctions []Auction) error
}

// Store indexes listings by id, sign location and claim anchor. The three
// maps always agree; every mutation rewrites the snapshot of its kind.
type Store struct {
	mu       sync.RWMutex
	sales    map[string]*Sale
	auctions map[string]*Auction
	bySign   map[string]string
	byAnchor map[string]string

	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
}

// NewStore returns an empty Store backed by repo.
func NewStore(repo Repository, logger *slog.Logger, tp trace.TracerProvider) *Store {
	return &Store{
		sales:    make(map[string]*Sale),
		auctions: make(map[string]*Auction),
		bySign:   make(map[string]string),
		byAnchor: make(map[string]string),
		repo:     repo,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/claim-market/internal/listing"),
	}
}

// Load replaces the in-memory state with the durable snapshots. Ended
// auctions and entries colliding with an earlier one are dropped.
func (s *Store) Load(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Store.Load")
	defer span.End()

	sales, err := s.repo.LoadSales(ctx)
	if err != nil {
		return fmt.Errorf("loading sales: %w", err)
	}
	auctions, err := s.repo.LoadAuctions(ctx)
	if err != nil {
		return fmt.Errorf("loading auctions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sales = make(map[string]*Sale, len(sales))
	s.auctions = make(map[string]*Auction, len(auctions))
	s.bySign = make(map[string]string)
	s.byAnchor = make(map[string]string)

	for i := range sales {
		sale := sales[i]
		if err := s.checkFreeLocked(sale.Common); err != nil {
			s.logger.WarnContext(ctx, "skipping sale on load", slog.String("listing_id", sale.ID), slog.Any("error", err))
			continue
		}
		s.sales[sale.ID] = &sale
		s.indexLocked(sale.Common)
	}
	for i := range auctions {
		a := auctions[i].Clone()
		if a.Ended {
			continue
		}
		if err := s.checkFreeLocked(a.Common); err != nil {
			s.logger.WarnContext(ctx, "skipping auction on load", slog.String("listing_id", a.ID), slog.Any("error", err))
			continue
		}
		s.auctions[a.ID] = &a
		s.indexLocked(a.Common)
	}

	s.logger.InfoContext(ctx, "listings loaded",
		slog.Int("sales", len(s.sales)),
		slog.Int("auctions", len(s.auctions)),
	)
	return nil
}

// AddSale inserts a sale. Nothing changes if the snapshot cannot be written.
func (s *Store) AddSale(ctx context.Context, sale Sale) error {
	ctx, span := s.tracer.Start(ctx, "Store.AddSale", trace.WithAttributes(attribute.String("listing_id", sale.ID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFreeLocked(sale.Common); err != nil {
		return err
	}
	s.sales[sale.ID] = &sale
	s.indexLocked(sale.Common)

	if err := s.repo.SaveSales(ctx, s.salesLocked()); err != nil {
		delete(s.sales, sale.ID)
		s.unindexLocked(sale.Common)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// AddAuction inserts an auction. Nothing changes if the snapshot cannot be written.
func (s *Store) AddAuction(ctx context.Context, a Auction) error {
	ctx, span := s.tracer.Start(ctx, "Store.AddAuction", trace.WithAttributes(attribute.String("listing_id", a.ID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFreeLocked(a.Common); err != nil {
		return err
	}
	stored := a.Clone()
	s.auctions[a.ID] = &stored
	s.indexLocked(a.Common)

	if err := s.repo.SaveAuctions(ctx, s.auctionsLocked()); err != nil {
		delete(s.auctions, a.ID)
		s.unindexLocked(a.Common)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// AppendBid records bid on an open auction and returns the updated copy.
func (s *Store) AppendBid(ctx context.Context, auctionID string, bid Bid) (Auction, error) {
	ctx, span := s.tracer.Start(ctx, "Store.AppendBid", trace.WithAttributes(attribute.String("listing_id", auctionID)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return Auction{}, ErrNotFound
	}
	if a.Ended {
		return Auction{}, ErrAuctionClosed
	}
	a.Bids = append(a.Bids, bid)

	if err := s.repo.SaveAuctions(ctx, s.auctionsLocked()); err != nil {
		a.Bids = a.Bids[:len(a.Bids)-1]
		return Auction{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return a.Clone(), nil
}

// Remove deletes a listing of either kind and returns it. Auctions come back
// with Ended set. A removed listing stays removed even when the snapshot
// write fails; the error is still returned so the caller can report it.
func (s *Store) Remove(ctx context.Context, id string) (Listing, error) {
	ctx, span := s.tracer.Start(ctx, "Store.Remove", trace.WithAttributes(attribute.String("listing_id", id)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale, ok := s.sales[id]; ok {
		delete(s.sales, id)
		s.unindexLocked(sale.Common)
		removed := *sale
		if err := s.repo.SaveSales(ctx, s.salesLocked()); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return removed, nil
	}

	if a, ok := s.auctions[id]; ok {
		a.Ended = true
		delete(s.auctions, id)
		s.unindexLocked(a.Common)
		removed := a.Clone()
		if err := s.repo.SaveAuctions(ctx, s.auctionsLocked()); err != nil {
			return removed, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return removed, nil
	}

	return nil, ErrNotFound
}

// Get returns the listing with the given id.
func (s *Store) Get(id string) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

// Sale returns the sale with the given id.
func (s *Store) Sale(id string) (Sale, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return Sale{}, false
	}
	return *sale, true
}

// Auction returns the auction with the given id.
func (s *Store) Auction(id string) (Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return Auction{}, false
	}
	return a.Clone(), true
}

// AtSign returns the listing anchored to the sign at loc.
func (s *Store) AtSign(loc world.Location) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySign[loc.Key()]
	if !ok {
		return nil, false
	}
	return s.getLocked(id)
}

// IsListingSign reports whether loc holds a listing sign.
func (s *Store) IsListingSign(loc world.Location) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySign[loc.Key()]
	return ok
}

// IsClaimListed reports whether a listing already references the claim anchor.
func (s *Store) IsClaimListed(anchor world.Location) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byAnchor[anchor.Key()]
	return ok
}

// Sales returns every sale, oldest first.
func (s *Store) Sales() []Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.salesLocked()
}

// ActiveAuctions returns auctions that are neither ended nor expired at now.
func (s *Store) ActiveAuctions(now time.Time) []Auction {
	return s.auctionsIn(now, StateActive)
}

// ExpiredAuctions returns auctions past their deadline that have not ended.
func (s *Store) ExpiredAuctions(now time.Time) []Auction {
	return s.auctionsIn(now, StateExpired)
}

func (s *Store) auctionsIn(now time.Time, state State) []Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Auction
	for _, a := range s.auctionsLocked() {
		if a.State(now) == state {
			out = append(out, a)
		}
	}
	return out
}

// BySeller returns the listings created by sellerID, oldest first.
func (s *Store) BySeller(sellerID string) []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Listing
	for _, sale := range s.salesLocked() {
		if sale.SellerID == sellerID {
			out = append(out, sale)
		}
	}
	for _, a := range s.auctionsLocked() {
		if a.SellerID == sellerID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().CreatedAt.Before(out[j].Base().CreatedAt)
	})
	return out
}

// BidOnBy returns active auctions on which bidderID has placed a bid.
func (s *Store) BidOnBy(bidderID string, now time.Time) []Auction {
	var out []Auction
	for _, a := range s.ActiveAuctions(now) {
		if _, ok := a.LatestBidBy(bidderID); ok {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of sales and auctions held.
func (s *Store) Len() (sales, auctions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales), len(s.auctions)
}

func (s *Store) getLocked(id string) (Listing, bool) {
	if sale, ok := s.sales[id]; ok {
		return *sale, true
	}
	if a, ok := s.auctions[id]; ok {
		return a.Clone(), true
	}
	return nil, false
}

func (s *Store) checkFreeLocked(c Common) error {
	if _, ok := s.sales[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	if _, ok := s.auctions[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, c.ID)
	}
	if _, ok := s.bySign[c.Sign.Key()]; ok {
		return ErrSignInUse
	}
	if _, ok := s.byAnchor[c.Anchor.Key()]; ok {
		return ErrClaimListed
	}
	return nil
}

func (s *Store) indexLocked(c Common) {
	s.bySign[c.Sign.Key()] = c.ID
	s.byAnchor[c.Anchor.Key()] = c.ID
}

func (s *Store) unindexLocked(c Common) {
	if s.bySign[c.Sign.Key()] == c.ID {
		delete(s.bySign, c.Sign.Key())
	}
	if s.byAnchor[c.Anchor.Key()] == c.ID {
		delete(s.byAnchor, c.Anchor.Key())
	}
}

func (s *Store) salesLocked() []Sale {
	out := make([]Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, *sale)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Common, out[j].Common) })
	return out
}

func (s *Store) auctionsLocked() []Auction {
	out := make([]Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Common, out[j].Common) })
	return out
}

func less(a, b Common) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
