// Package ledger is the append-only record of completed claim trades.
package ledger

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

	"github.com/jensholdgaard/claim-market/internal/clock"
)

// Errors returned by the Ledger.
var (
	ErrNotFound    = errors.New("transaction not found")
	ErrPersistence = errors.New("persisting transaction")
)

// Type is the kind of trade a record describes.
type Type string

const (
	TypeSale    Type = "SALE"
	TypeAuction Type = "AUCTION"
	TypeBuyNow  Type = "BUY_NOW"
)

// Party is one side of a trade.
type Party struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Record is a single completed trade. Records are write-once.
type Record struct {
	Seq       int64     `json:"seq" yaml:"seq"`
	ID        string    `json:"id" yaml:"id"`
	Type      Type      `json:"type" yaml:"type"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Seller    Party     `json:"seller" yaml:"seller"`
	Buyer     Party     `json:"buyer" yaml:"buyer"`
	Price     int64     `json:"price" yaml:"price"`

	// Auction settlement only.
	WinningBid int64 `json:"winning_bid,omitempty" yaml:"winning_bid,omitempty"`
	BidCount   int   `json:"bid_count,omitempty" yaml:"bid_count,omitempty"`

	ClaimArea       int    `json:"claim_area" yaml:"claim_area"`
	ClaimDimensions string `json:"claim_dimensions" yaml:"claim_dimensions"`
	ClaimLocation   string `json:"claim_location" yaml:"claim_location"`
	ClaimName       string `json:"claim_name,omitempty" yaml:"claim_name,omitempty"`
}

// Involves reports whether playerID is the seller or the buyer.
func (r Record) Involves(playerID string) bool {
	return r.Seller.ID == playerID || r.Buyer.ID == playerID
}

// FormatID renders a sequence number as a transaction id, e.g. TX000042.
func FormatID(seq int64) string {
	return fmt.Sprintf("TX%06d", seq)
}

// Repository persists the counter and records.
type Repository interface {
	// Load returns the stored counter and every record.
	Load(ctx context.Context) (counter int64, records []Record, err error)
	// Append stores rec and advances the counter to counter in one write.
	Append(ctx context.Context, counter int64, rec Record) error
}

// Ledger assigns ids and keeps every record in memory, oldest first.
type Ledger struct {
	mu      sync.RWMutex
	counter int64
	records []Record
	byID    map[string]int

	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
}

// New returns an empty Ledger backed by repo.
func New(repo Repository, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Ledger {
	return &Ledger{
		byID:   make(map[string]int),
		repo:   repo,
		clock:  clk,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/claim-market/internal/ledger"),
	}
}

// Load replaces the in-memory ledger with the stored one. The counter never
// moves backwards, even when the stored counter lags the stored records.
func (l *Ledger) Load(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "Ledger.Load")
	defer span.End()

	counter, records, err := l.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = records
	l.byID = make(map[string]int, len(records))
	for i, r := range records {
		l.byID[r.ID] = i
		if r.Seq > counter {
			counter = r.Seq
		}
	}
	l.counter = counter

	l.logger.InfoContext(ctx, "ledger loaded",
		slog.Int64("counter", l.counter),
		slog.Int("records", len(l.records)),
	)
	return nil
}

// Record assigns the next id and timestamp to rec and stores it. On error
// neither the record nor the advanced counter is kept.
func (l *Ledger) Record(ctx context.Context, rec Record) (Record, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Record",
		trace.WithAttributes(
			attribute.String("type", string(rec.Type)),
			attribute.Int64("price", rec.Price),
		),
	)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.counter + 1
	rec.Seq = next
	rec.ID = FormatID(next)
	rec.Timestamp = l.clock.Now()

	if err := l.repo.Append(ctx, next, rec); err != nil {
		l.logger.ErrorContext(ctx, "failed to persist transaction",
			slog.String("tx_id", rec.ID),
			slog.Any("error", err),
		)
		return Record{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	l.counter = next
	l.byID[rec.ID] = len(l.records)
	l.records = append(l.records, rec)

	l.logger.InfoContext(ctx, "transaction recorded",
		slog.String("tx_id", rec.ID),
		slog.String("type", string(rec.Type)),
		slog.String("seller", rec.Seller.Name),
		slog.String("buyer", rec.Buyer.Name),
		slog.Int64("price", rec.Price),
		slog.Int("area", rec.ClaimArea),
	)
	return rec, nil
}

// Recent returns up to count records, newest first. A non-empty playerID
// keeps only records in which that player was seller or buyer.
func (l *Ledger) Recent(count int, playerID string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for i := len(l.records) - 1; i >= 0 && len(out) < count; i-- {
		r := l.records[i]
		if playerID != "" && !r.Involves(playerID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Get returns the record with the given id.
func (l *Ledger) Get(id string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.records[i], nil
}

// Count returns the number of ids issued so far.
func (l *Ledger) Count() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counter
}
