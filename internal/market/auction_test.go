package market_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/sign"
)

func (h *harness) listAuction(t *testing.T, req sign.AuctionRequest) listing.Auction {
	t.Helper()
	if req.Duration == 0 {
		req.Duration = 24 * time.Hour
	}
	a, err := h.m.CreateAuction(context.Background(), seller, homeSign, req)
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	return a
}

func (h *harness) bid(t *testing.T, who market.Actor, auctionID string, amount int64) market.BidResult {
	t.Helper()
	res, err := h.m.PlaceBid(context.Background(), who, auctionID, amount)
	if err != nil {
		t.Fatalf("PlaceBid(%s, %d): %v", who.ID, amount, err)
	}
	return res
}

func (h *harness) fund(amount int64, ids ...string) {
	for _, id := range ids {
		h.bank.SetBalance(id, amount)
	}
}

func TestPlaceBid(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer", "carol")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 100})

	if res := h.bid(t, buyer, a.ID, 150); res.Outcome != market.BidAccepted || res.Amount != 150 {
		t.Errorf("first bid = %+v", res)
	}
	if res := h.bid(t, buyer, a.ID, 200); res.Outcome != market.BidRaised {
		t.Errorf("raise outcome = %v, want raised", res.Outcome)
	}
	h.bid(t, carol, a.ID, 120)

	got, _ := h.store.Auction(a.ID)
	if len(got.Bids) != 3 {
		t.Fatalf("bids = %d, want 3", len(got.Bids))
	}
	if got.Bids[0].Amount != 150 || got.Bids[1].Amount != 200 {
		t.Errorf("bid history not kept: %+v", got.Bids)
	}
	if !got.Bids[0].PlacedAt.Equal(startAt) {
		t.Errorf("placed at = %v", got.Bids[0].PlacedAt)
	}
	if n := h.events.count(event.BidPlaced); n != 3 {
		t.Errorf("bid.placed events = %d, want 3", n)
	}
	if got := h.bank.balance("buyer"); got != 1000 {
		t.Errorf("bidding moved funds: %d", got)
	}
}

func TestPlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness, a listing.Auction)
		bidder  market.Actor
		amount  int64
		id      string
		wantErr error
	}{
		{name: "unknown auction", bidder: buyer, amount: 200, id: "auction_missing", wantErr: market.ErrNotFound},
		{name: "seller bids", bidder: seller, amount: 200, wantErr: market.ErrSelfTrade},
		{name: "below minimum", bidder: buyer, amount: 99, wantErr: market.ErrBidTooLow},
		{name: "cannot afford", bidder: buyer, amount: 5000, wantErr: market.ErrInsufficientFunds},
		{
			name:    "not above own bid",
			setup:   func(t *testing.T, h *harness, a listing.Auction) { h.bid(t, buyer, a.ID, 300) },
			bidder:  buyer,
			amount:  300,
			wantErr: market.ErrBidNotHigher,
		},
		{
			name:    "after deadline",
			setup:   func(_ *testing.T, h *harness, _ listing.Auction) { h.clk.Advance(24 * time.Hour) },
			bidder:  buyer,
			amount:  200,
			wantErr: market.ErrAuctionEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fund(1000, "buyer", "seller")
			a := h.listAuction(t, sign.AuctionRequest{MinBid: 100})
			if tt.setup != nil {
				tt.setup(t, h, a)
			}
			id := tt.id
			if id == "" {
				id = a.ID
			}
			before, _ := h.store.Auction(a.ID)

			_, err := h.m.PlaceBid(context.Background(), tt.bidder, id, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PlaceBid() error = %v, want %v", err, tt.wantErr)
			}
			after, _ := h.store.Auction(a.ID)
			if len(after.Bids) != len(before.Bids) {
				t.Error("rejected bid was recorded")
			}
		})
	}
}

func TestPlaceBid_BuyNow(t *testing.T) {
	h := newHarness(t)
	h.fund(10000, "buyer", "carol")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 1000, BuyNow: 5000})
	h.bid(t, carol, a.ID, 1500)

	res := h.bid(t, buyer, a.ID, 6000)
	if res.Outcome != market.BoughtNow || res.Amount != 5000 {
		t.Fatalf("result = %+v, want bought_now at 5000", res)
	}
	if res.Trade == nil || res.Trade.Type != ledger.TypeBuyNow || res.Trade.Price != 5000 {
		t.Fatalf("trade = %+v", res.Trade)
	}
	if got := h.bank.balance("buyer"); got != 5000 {
		t.Errorf("buyer balance = %d, want 5000", got)
	}
	if got := h.bank.balance("seller"); got != 5000 {
		t.Errorf("seller balance = %d, want 5000", got)
	}
	if got := h.reg.owner("home"); got != "buyer" {
		t.Errorf("owner = %q", got)
	}
	if _, ok := h.store.Auction(a.ID); ok {
		t.Error("auction still listed")
	}
	rec, err := h.ledger.Get(res.Trade.TxID)
	if err != nil {
		t.Fatalf("ledger.Get: %v", err)
	}
	if rec.Type != ledger.TypeBuyNow || rec.WinningBid != 0 || rec.BidCount != 0 {
		t.Errorf("ledger record = %+v", rec)
	}
	if msgs := h.messages("carol"); len(msgs) != 1 {
		t.Errorf("outbid bidder messages = %q", msgs)
	}
	if msgs := h.messages("seller"); len(msgs) != 1 || msgs[0] != "Alex bought your claim instantly for $5,000!" {
		t.Errorf("seller messages = %q", msgs)
	}
}

func TestPlaceBid_BuyNowOnStaleClaim(t *testing.T) {
	h := newHarness(t)
	h.fund(10000, "buyer")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 1000, BuyNow: 5000})
	h.reg.Delete("home")

	_, err := h.m.PlaceBid(context.Background(), buyer, a.ID, 5000)
	if !errors.Is(err, market.ErrStaleListing) {
		t.Fatalf("PlaceBid() error = %v, want ErrStaleListing", err)
	}
	if _, ok := h.store.Auction(a.ID); ok {
		t.Error("stale auction still listed")
	}
	if got := h.bank.balance("buyer"); got != 10000 {
		t.Errorf("buyer charged: %d", got)
	}
}

func TestProcessExpired_Settles(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer", "carol", "dave")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.bid(t, dave, a.ID, 60)
	h.bid(t, buyer, a.ID, 100)
	h.bid(t, carol, a.ID, 80)

	h.clk.Advance(24 * time.Hour)
	outcome, err := h.m.ProcessExpired(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("ProcessExpired() unexpected error: %v", err)
	}
	if outcome != market.ExpirySettled {
		t.Fatalf("outcome = %v, want settled", outcome)
	}

	if got := h.bank.balance("buyer"); got != 920 {
		t.Errorf("winner balance = %d, want 920", got)
	}
	if got := h.bank.balance("seller"); got != 80 {
		t.Errorf("seller balance = %d, want 80", got)
	}
	for _, id := range []string{"carol", "dave"} {
		if got := h.bank.balance(id); got != 1000 {
			t.Errorf("%s balance = %d, want 1000", id, got)
		}
	}
	if got := h.reg.owner("home"); got != "buyer" {
		t.Errorf("owner = %q", got)
	}

	recs := h.ledger.Recent(10, "")
	if len(recs) != 1 {
		t.Fatalf("ledger records = %d, want 1", len(recs))
	}
	if r := recs[0]; r.Type != ledger.TypeAuction || r.Price != 80 || r.WinningBid != 100 || r.BidCount != 3 {
		t.Errorf("ledger record = %+v", r)
	}

	if msgs := h.messages("buyer"); len(msgs) != 1 || msgs[0] != "You won the auction! You paid $80." {
		t.Errorf("winner messages = %q", msgs)
	}
	if msgs := h.messages("seller"); len(msgs) != 1 || msgs[0] != "Alex won your auction for $80!" {
		t.Errorf("seller messages = %q", msgs)
	}
	for _, id := range []string{"carol", "dave"} {
		if msgs := h.messages(id); len(msgs) != 1 || msgs[0] != "An auction you bid on has ended. You did not win." {
			t.Errorf("%s messages = %q", id, msgs)
		}
	}
}

func TestProcessExpired_SingleBidPaysMinimum(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.bid(t, buyer, a.ID, 400)

	h.clk.Advance(24 * time.Hour)
	if outcome, err := h.m.ProcessExpired(context.Background(), a.ID); err != nil || outcome != market.ExpirySettled {
		t.Fatalf("ProcessExpired() = %v, %v", outcome, err)
	}
	if got := h.bank.balance("buyer"); got != 950 {
		t.Errorf("winner balance = %d, want 950", got)
	}
}

func TestProcessExpired_RebidPricing(t *testing.T) {
	tests := []struct {
		name       string
		latestOnly bool
		want       int64
	}{
		// buyer's earlier 100 is the runner-up to their own 150.
		{name: "every bid counts", latestOnly: false, want: 900},
		{name: "latest bid per bidder", latestOnly: true, want: 910},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessWithConfig(t, func(c *config.MarketConfig) { c.SettleOnLatestBids = tt.latestOnly })
			h.fund(1000, "buyer", "carol")
			a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
			h.bid(t, buyer, a.ID, 100)
			h.bid(t, carol, a.ID, 90)
			h.bid(t, buyer, a.ID, 150)

			h.clk.Advance(24 * time.Hour)
			if _, err := h.m.ProcessExpired(context.Background(), a.ID); err != nil {
				t.Fatal(err)
			}
			if got := h.bank.balance("buyer"); got != tt.want {
				t.Errorf("winner balance = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcessExpired_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T, h *harness, a listing.Auction)
		advance     time.Duration
		want        market.ExpiryOutcome
		wantErr     error
		wantRemoved bool
		wantSeller  string // seller notification
	}{
		{
			name:    "not yet due",
			advance: 23 * time.Hour,
			want:    market.ExpiryNotDue,
		},
		{
			name:        "no bids",
			advance:     24 * time.Hour,
			want:        market.ExpiryNoBids,
			wantRemoved: true,
			wantSeller:  "Your auction ended with no bids.",
		},
		{
			name: "winner cannot pay",
			setup: func(t *testing.T, h *harness, a listing.Auction) {
				h.bid(t, buyer, a.ID, 100)
				h.bank.SetBalance("buyer", 10)
			},
			advance:     24 * time.Hour,
			want:        market.ExpiryUnpaid,
			wantRemoved: true,
			wantSeller:  "Your auction ended but the winner couldn't pay. Auction cancelled.",
		},
		{
			name: "claim changed hands",
			setup: func(t *testing.T, h *harness, a listing.Auction) {
				h.bid(t, buyer, a.ID, 100)
				c := home
				c.OwnerID = "dave"
				h.reg.Put(c)
			},
			advance:     24 * time.Hour,
			want:        market.ExpiryStale,
			wantRemoved: true,
			wantSeller:  "Your auction ended but the claim is no longer yours to sell.",
		},
		{
			name: "transfer fails",
			setup: func(t *testing.T, h *harness, a listing.Auction) {
				h.bid(t, buyer, a.ID, 100)
				h.reg.failTransfer["home"] = claims.ErrTransferRejected
			},
			advance:     24 * time.Hour,
			want:        market.ExpiryFailed,
			wantErr:     market.ErrSagaStep,
			wantRemoved: true,
			wantSeller:  "Your auction ended but the transfer failed. Transaction cancelled.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fund(1000, "buyer")
			a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
			if tt.setup != nil {
				tt.setup(t, h, a)
			}
			balance := h.bank.balance("buyer")
			h.clk.Advance(tt.advance)

			got, err := h.m.ProcessExpired(context.Background(), a.ID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ProcessExpired() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("ProcessExpired() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %v, want %v", got, tt.want)
			}
			if _, ok := h.store.Auction(a.ID); ok == tt.wantRemoved {
				t.Errorf("auction listed = %v, want %v", ok, !tt.wantRemoved)
			}
			if h.ledger.Count() != 0 {
				t.Error("ledger recorded a trade")
			}
			if h.bank.balance("buyer") != balance || h.bank.balance("seller") != 0 {
				t.Error("balances changed")
			}
			msgs := h.messages("seller")
			if tt.wantSeller == "" {
				if len(msgs) != 0 {
					t.Errorf("seller messages = %q, want none", msgs)
				}
				return
			}
			if len(msgs) != 1 || msgs[0] != tt.wantSeller {
				t.Errorf("seller messages = %q, want %q", msgs, tt.wantSeller)
			}
		})
	}
}

func TestProcessExpired_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.bid(t, buyer, a.ID, 100)
	h.clk.Advance(48 * time.Hour)

	if outcome, _ := h.m.ProcessExpired(context.Background(), a.ID); outcome != market.ExpirySettled {
		t.Fatalf("first outcome = %v", outcome)
	}
	h.messages("buyer")

	outcome, err := h.m.ProcessExpired(context.Background(), a.ID)
	if err != nil || outcome != market.ExpiryNotDue {
		t.Fatalf("second ProcessExpired() = %v, %v; want not_due", outcome, err)
	}
	if h.ledger.Count() != 1 {
		t.Errorf("ledger count = %d, want 1", h.ledger.Count())
	}
	if got := h.bank.balance("buyer"); got != 950 {
		t.Errorf("buyer charged twice: %d", got)
	}
	if h.inbox.Pending("buyer") != 0 {
		t.Error("winner notified twice")
	}
}

func TestSweepExpired(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer", "carol")
	first := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	second, err := h.m.CreateAuction(context.Background(), seller, farmSign, sign.AuctionRequest{MinBid: 50, Duration: 12 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	third, err := h.m.CreateAuction(context.Background(), carol, at(55, 55), sign.AuctionRequest{MinBid: 50, Duration: 72 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	h.bid(t, buyer, first.ID, 100)
	h.bid(t, carol, second.ID, 100)
	h.bid(t, buyer, third.ID, 100)
	h.reg.failTransfer["home"] = claims.ErrTransferRejected

	h.clk.Advance(25 * time.Hour)
	rep := h.m.SweepExpired(context.Background())
	if rep != (market.SweepReport{Processed: 2, Settled: 1, Failed: 1}) {
		t.Errorf("report = %+v", rep)
	}
	if h.reg.owner("farm") != "carol" {
		t.Error("healthy auction was not settled")
	}
	if _, ok := h.store.Auction(third.ID); !ok {
		t.Error("running auction was swept")
	}

	if rep := h.m.SweepExpired(context.Background()); rep != (market.SweepReport{}) {
		t.Errorf("second sweep = %+v, want empty", rep)
	}
	if h.ledger.Count() != 1 {
		t.Errorf("ledger count = %d, want 1", h.ledger.Count())
	}
}

func TestCancelAuction(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer", "carol")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.bid(t, buyer, a.ID, 100)
	h.bid(t, carol, a.ID, 110)
	h.bid(t, buyer, a.ID, 120)

	ok, err := h.m.CancelAuction(context.Background(), a.ID)
	if err != nil || !ok {
		t.Fatalf("CancelAuction() = %v, %v", ok, err)
	}
	if _, ok := h.store.Auction(a.ID); ok {
		t.Error("auction still listed")
	}
	if msgs := h.messages("seller"); len(msgs) != 1 || msgs[0] != "Your auction has been cancelled." {
		t.Errorf("seller messages = %q", msgs)
	}
	for _, id := range []string{"buyer", "carol"} {
		if msgs := h.messages(id); len(msgs) != 1 || msgs[0] != "An auction you bid on has been cancelled by the seller." {
			t.Errorf("%s messages = %q", id, msgs)
		}
	}
	if ok, _ := h.m.CancelAuction(context.Background(), a.ID); ok {
		t.Error("second cancel reported true")
	}
}

func TestBidsBy_HidesOtherBids(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer", "carol")
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.bid(t, carol, a.ID, 300)
	h.bid(t, buyer, a.ID, 100)
	h.bid(t, buyer, a.ID, 200)

	got := h.m.BidsBy("buyer")
	if len(got) != 1 {
		t.Fatalf("BidsBy() = %d auctions, want 1", len(got))
	}
	if got[0].Auction.Bids != nil {
		t.Error("bid list leaked to viewer")
	}
	if got[0].Bid.Amount != 200 {
		t.Errorf("own bid = %d, want 200", got[0].Bid.Amount)
	}
	if len(h.m.BidsBy("dave")) != 0 {
		t.Error("non-bidder sees auctions")
	}
}

func TestRefreshDisplays(t *testing.T) {
	h := newHarness(t)
	a := h.listAuction(t, sign.AuctionRequest{MinBid: 50})
	h.board.Drain()

	h.clk.Advance(2 * time.Hour)
	if n := h.m.RefreshDisplays(context.Background()); n != 1 {
		t.Fatalf("refreshed %d signs, want 1", n)
	}
	lines, _ := h.board.Lines(homeSign)
	cur, _ := h.store.Auction(a.ID)
	if lines != sign.AuctionLines(cur, h.clk.Now()) {
		t.Errorf("sign = %v", lines)
	}
	if len(h.board.Drain()) != 1 {
		t.Error("refresh did not queue a sign update")
	}

	h.clk.Advance(24 * time.Hour)
	if n := h.m.RefreshDisplays(context.Background()); n != 0 {
		t.Errorf("expired auction refreshed")
	}
}
