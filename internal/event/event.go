package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	ListingCreated   Type = "listing.created"
	ListingCancelled Type = "listing.cancelled"
	ListingRemoved   Type = "listing.removed"

	BidPlaced Type = "bid.placed"

	TradeCompleted   Type = "trade.completed"
	AuctionEnded     Type = "auction.ended"
	SagaCompensated  Type = "saga.compensated"
	BalanceAdjusted  Type = "balance.adjusted"
	ClaimNameChanged Type = "claim.name_changed"
)

// Event represents a single market event. AggregateID is the listing id, or
// the player id for balance adjustments.
type Event struct {
	ID          int64           `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// New builds an event with a JSON payload. A payload that cannot be encoded
// is stored as null.
func New(aggregateID string, t Type, payload any, at time.Time) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = json.RawMessage("null")
	}
	return Event{AggregateID: aggregateID, Type: t, Data: data, CreatedAt: at}
}

// ListingData is the payload for ListingCreated, ListingCancelled and
// ListingRemoved events.
type ListingData struct {
	Kind     string `json:"kind"`
	SellerID string `json:"seller_id"`
	ClaimID  string `json:"claim_id"`
	Price    int64  `json:"price,omitempty"`
	MinBid   int64  `json:"min_bid,omitempty"`
	BuyNow   int64  `json:"buy_now,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// BidPlacedData is the payload for BidPlaced events. Amounts stay in the
// journal and are never shown to other bidders.
type BidPlacedData struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// TradeData is the payload for TradeCompleted events.
type TradeData struct {
	TxID     string `json:"tx_id,omitempty"`
	Type     string `json:"type"`
	SellerID string `json:"seller_id"`
	BuyerID  string `json:"buyer_id"`
	Price    int64  `json:"price"`
}

// AuctionEndedData is the payload for AuctionEnded events.
type AuctionEndedData struct {
	Outcome  string `json:"outcome"` // "settled", "no_bids", "unpaid", "stale", "failed", "cancelled"
	WinnerID string `json:"winner_id,omitempty"`
	Price    int64  `json:"price,omitempty"`
	Bids     int    `json:"bids"`
}

// SagaCompensatedData is the payload for SagaCompensated events.
type SagaCompensatedData struct {
	FailedStep string   `json:"failed_step"`
	Undone     []string `json:"undone"`
	Error      string   `json:"error"`
}

// BalanceData is the payload for BalanceAdjusted events.
type BalanceData struct {
	PlayerID string `json:"player_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

// ClaimNameData is the payload for ClaimNameChanged events.
type ClaimNameData struct {
	ClaimID string `json:"claim_id"`
	Name    string `json:"name"`
	By      string `json:"by"`
}
