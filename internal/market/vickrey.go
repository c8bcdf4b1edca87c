package market

import (
	"sort"

	"github.com/jensholdgaard/claim-market/internal/listing"
)

// Settlement is the outcome of pricing a sealed-bid auction.
type Settlement struct {
	Winner     listing.Bid
	Price      int64 // what the winner pays
	HighestBid int64
	BidCount   int // every recorded bid, rebids included
}

// Settle prices an auction at the second-highest bid, or at the minimum bid
// when only one bid competes. Equal amounts rank by placement order, so the
// earlier bid wins a tie. With latestOnly, each bidder competes with their
// most recent bid only and cannot set their own price with an older one.
// It reports false when there are no bids.
func Settle(a listing.Auction, latestOnly bool) (Settlement, bool) {
	bids := a.Bids
	if latestOnly {
		bids = latestPerBidder(a.Bids)
	}
	if len(bids) == 0 {
		return Settlement{}, false
	}

	ranked := make([]listing.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Amount > ranked[j].Amount })

	s := Settlement{
		Winner:     ranked[0],
		Price:      a.MinBid,
		HighestBid: ranked[0].Amount,
		BidCount:   len(a.Bids),
	}
	if len(ranked) > 1 {
		s.Price = ranked[1].Amount
	}
	return s, true
}

// latestPerBidder keeps each bidder's last bid, in placement order.
func latestPerBidder(bids []listing.Bid) []listing.Bid {
	last := make(map[string]int, len(bids))
	for i, b := range bids {
		last[b.BidderID] = i
	}
	out := make([]listing.Bid, 0, len(last))
	for i, b := range bids {
		if last[b.BidderID] == i {
			out = append(out, b)
		}
	}
	return out
}
