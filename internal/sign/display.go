package sign

import (
	"time"
	"unicode/utf8"

	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/price"
)

// Lines is the text of a four-line sign.
type Lines [4]string

const maxNameRunes = 15

// SaleLines renders a sale sign.
func SaleLines(s listing.Sale) Lines {
	return Lines{
		"[For Sale]",
		price.FormatFull(s.Price),
		truncate(s.SellerName),
		s.Dimensions,
	}
}

// AuctionLines renders an auction sign as seen at now. Bid amounts never
// appear on it.
func AuctionLines(a listing.Auction, now time.Time) Lines {
	third := a.SellerName
	if a.HasBuyNow() {
		third = "BuyNow: " + price.FormatCompact(a.BuyNow)
	}
	return Lines{
		"[Auction]",
		"Min: " + price.FormatCompact(a.MinBid),
		truncate(third),
		"Ends: " + price.FormatRemaining(a.Remaining(now)),
	}
}

// Render returns the sign text for any listing.
func Render(l listing.Listing, now time.Time) Lines {
	switch l := l.(type) {
	case listing.Sale:
		return SaleLines(l)
	case listing.Auction:
		return AuctionLines(l, now)
	default:
		panic("sign: unknown listing type")
	}
}

func truncate(name string) string {
	if utf8.RuneCountInString(name) <= maxNameRunes {
		return name
	}
	r := []rune(name)
	return string(r[:maxNameRunes-1]) + "…"
}
