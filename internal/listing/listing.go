// Package listing models sale and auction listings and keeps the in-memory
// index of them that every market operation reads and mutates.
package listing

import (
	"time"

	"github.com/jensholdgaard/claim-market/internal/world"
)

// Kind distinguishes the two listing variants.
type Kind int

const (
	KindSale Kind = iota + 1
	KindAuction
)

func (k Kind) String() string {
	switch k {
	case KindSale:
		return "sale"
	case KindAuction:
		return "auction"
	default:
		return "unknown"
	}
}

// Common holds the fields shared by every listing.
type Common struct {
	ID         string         `json:"id" yaml:"id"`
	SellerID   string         `json:"seller_id" yaml:"seller_id"`
	SellerName string         `json:"seller_name" yaml:"seller_name"`
	Sign       world.Location `json:"sign" yaml:"sign"`
	ClaimID    string         `json:"claim_id" yaml:"claim_id"`
	Anchor     world.Location `json:"anchor" yaml:"anchor"`
	Area       int            `json:"area" yaml:"area"`
	Dimensions string         `json:"dimensions" yaml:"dimensions"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
}

// Listing is either a Sale or an Auction. Code that needs the variant
// switches on the concrete type; the unexported method keeps the set closed.
type Listing interface {
	Base() Common
	Kind() Kind
	isListing()
}

// Sale is a fixed-price listing.
type Sale struct {
	Common `yaml:",inline"`
	Price  int64 `json:"price" yaml:"price"`
}

func (s Sale) Base() Common { return s.Common }
func (s Sale) Kind() Kind   { return KindSale }
func (Sale) isListing()     {}

// Bid is a sealed bid. Bids are never edited once recorded.
type Bid struct {
	BidderID   string    `json:"bidder_id" yaml:"bidder_id"`
	BidderName string    `json:"bidder_name" yaml:"bidder_name"`
	Amount     int64     `json:"amount" yaml:"amount"`
	PlacedAt   time.Time `json:"placed_at" yaml:"placed_at"`
}

// State is the lifecycle position of an auction.
type State int

const (
	StateActive State = iota + 1
	StateExpired
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateExpired:
		return "EXPIRED"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Auction is a sealed-bid listing settled at the second-highest price.
type Auction struct {
	Common    `yaml:",inline"`
	MinBid    int64     `json:"min_bid" yaml:"min_bid"`
	BuyNow    int64     `json:"buy_now" yaml:"buy_now"` // 0 when absent
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
	Ended     bool      `json:"ended" yaml:"ended"`
	Bids      []Bid     `json:"bids" yaml:"bids"`
}

func (a Auction) Base() Common { return a.Common }
func (a Auction) Kind() Kind   { return KindAuction }
func (Auction) isListing()     {}

// HasBuyNow reports whether a buy-now price is set.
func (a Auction) HasBuyNow() bool { return a.BuyNow > 0 }

// Expired reports whether the deadline has passed.
func (a Auction) Expired(now time.Time) bool { return !now.Before(a.ExpiresAt) }

// State derives the lifecycle state at now.
func (a Auction) State(now time.Time) State {
	switch {
	case a.Ended:
		return StateEnded
	case a.Expired(now):
		return StateExpired
	default:
		return StateActive
	}
}

// Remaining returns the time left before expiry, never negative.
func (a Auction) Remaining(now time.Time) time.Duration {
	if d := a.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// LatestBidBy returns the most recent bid placed by bidderID.
func (a Auction) LatestBidBy(bidderID string) (Bid, bool) {
	for i := len(a.Bids) - 1; i >= 0; i-- {
		if a.Bids[i].BidderID == bidderID {
			return a.Bids[i], true
		}
	}
	return Bid{}, false
}

// Bidders returns each distinct bidder id in order of first bid.
func (a Auction) Bidders() []string {
	seen := make(map[string]struct{}, len(a.Bids))
	var ids []string
	for _, b := range a.Bids {
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		ids = append(ids, b.BidderID)
	}
	return ids
}

// Clone returns a copy that shares no memory with a.
func (a Auction) Clone() Auction {
	c := a
	if a.Bids != nil {
		c.Bids = make([]Bid, len(a.Bids))
		copy(c.Bids, a.Bids)
	}
	return c
}
