package ledger

import (
	"fmt"
	"strings"

	"github.com/jensholdgaard/claim-market/internal/price"
)

const dateLayout = "2006-01-02 15:04:05"

// FormatLine renders a record as a one-line summary.
func FormatLine(r Record) string {
	claim := fmt.Sprintf("%d blocks", r.ClaimArea)
	if r.ClaimName != "" {
		claim = r.ClaimName
	}
	return fmt.Sprintf("[%s] %s %s -> %s for %s (%s)",
		r.ID, r.Type, r.Seller.Name, r.Buyer.Name, price.FormatFull(r.Price), claim)
}

// FormatDetail renders every field of a record, one per line.
func FormatDetail(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Transaction %s ---\n", r.ID)
	fmt.Fprintf(&b, "Type: %s\n", r.Type)
	fmt.Fprintf(&b, "Date: %s\n", r.Timestamp.UTC().Format(dateLayout))
	fmt.Fprintf(&b, "Seller: %s\n", r.Seller.Name)
	fmt.Fprintf(&b, "Buyer: %s\n", r.Buyer.Name)
	fmt.Fprintf(&b, "Price: %s\n", price.FormatFull(r.Price))
	if r.ClaimName != "" {
		fmt.Fprintf(&b, "Claim: %s\n", r.ClaimName)
	}
	fmt.Fprintf(&b, "Size: %s (%d blocks)\n", r.ClaimDimensions, r.ClaimArea)
	fmt.Fprintf(&b, "Location: %s", r.ClaimLocation)
	if r.Type == TypeAuction {
		fmt.Fprintf(&b, "\nWinning Bid: %s", price.FormatFull(r.WinningBid))
		fmt.Fprintf(&b, "\nTotal Bids: %d", r.BidCount)
	}
	return b.String()
}
