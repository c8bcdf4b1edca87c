package api

import (
	"time"

	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/world"
)

// listingView is a listing as any player may see it. Bid amounts are sealed
// and never appear.
type listingView struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	SellerID   string         `json:"seller_id"`
	SellerName string         `json:"seller_name"`
	ClaimID    string         `json:"claim_id"`
	Sign       world.Location `json:"sign"`
	Area       int            `json:"area"`
	Dimensions string         `json:"dimensions"`
	CreatedAt  time.Time      `json:"created_at"`

	Price     int64      `json:"price,omitempty"`
	MinBid    int64      `json:"min_bid,omitempty"`
	BuyNow    int64      `json:"buy_now,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	BidCount  int        `json:"bid_count,omitempty"`
}

func viewOf(l listing.Listing) listingView {
	c := l.Base()
	v := listingView{
		ID:         c.ID,
		Kind:       l.Kind().String(),
		SellerID:   c.SellerID,
		SellerName: c.SellerName,
		ClaimID:    c.ClaimID,
		Sign:       c.Sign,
		Area:       c.Area,
		Dimensions: c.Dimensions,
		CreatedAt:  c.CreatedAt,
	}
	switch l := l.(type) {
	case listing.Sale:
		v.Price = l.Price
	case listing.Auction:
		expires := l.ExpiresAt
		v.MinBid = l.MinBid
		v.BuyNow = l.BuyNow
		v.ExpiresAt = &expires
		v.BidCount = len(l.Bids)
	}
	return v
}

func viewsOf(ls []listing.Listing) []listingView {
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, viewOf(l))
	}
	return out
}

type ownBidView struct {
	Auction  listingView `json:"auction"`
	Amount   int64       `json:"amount"`
	PlacedAt time.Time   `json:"placed_at"`
}

type transactionView struct {
	ledger.Record
	Summary string `json:"summary"`
	Detail  string `json:"detail,omitempty"`
}
