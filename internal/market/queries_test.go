package market_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/sign"
)

func TestListings(t *testing.T) {
	h := newHarness(t)
	h.listSale(t, 1000)
	if _, err := h.m.CreateAuction(context.Background(), carol, at(55, 55), sign.AuctionRequest{MinBid: 100, Duration: time.Hour}); err != nil {
		t.Fatal(err)
	}

	if got := len(h.m.Listings("")); got != 2 {
		t.Errorf("Listings(all) = %d, want 2", got)
	}
	if got := h.m.Listings("carol"); len(got) != 1 || got[0].Base().SellerID != "carol" {
		t.Errorf("Listings(carol) = %+v", got)
	}

	h.clk.Advance(time.Hour)
	if got := len(h.m.Listings("")); got != 1 {
		t.Errorf("expired auction still listed: %d", got)
	}
}

func TestSignLines(t *testing.T) {
	h := newHarness(t)
	s := h.listSale(t, 1500)

	lines, ok := h.m.SignLines(homeSign)
	if !ok || lines != sign.SaleLines(s) {
		t.Errorf("SignLines() = %v, %v", lines, ok)
	}
	if _, ok := h.m.SignLines(at(3, 3)); ok {
		t.Error("SignLines() found a listing at a plain sign")
	}
}

func TestTransactions(t *testing.T) {
	h := newHarness(t)
	h.fund(100000, "buyer", "carol")

	s := h.listSale(t, 1000)
	if _, err := h.m.Purchase(context.Background(), buyer, s.ID); err != nil {
		t.Fatal(err)
	}
	other, err := h.m.CreateSale(context.Background(), seller, farmSign, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.m.Purchase(context.Background(), carol, other.ID); err != nil {
		t.Fatal(err)
	}

	if h.m.TransactionCount() != 2 {
		t.Errorf("TransactionCount() = %d, want 2", h.m.TransactionCount())
	}
	recent := h.m.Recent(10, "")
	if len(recent) != 2 || recent[0].ID != "TX000002" {
		t.Errorf("Recent() = %+v", recent)
	}
	if got := h.m.Recent(10, "buyer"); len(got) != 1 || got[0].ID != "TX000001" {
		t.Errorf("Recent(buyer) = %+v", got)
	}
	if _, err := h.m.Transaction("TX000009"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Transaction(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRenameClaim(t *testing.T) {
	tests := []struct {
		name    string
		actor   market.Actor
		claimID string
		newName string
		wantErr error
	}{
		{name: "owner", actor: seller, claimID: "home", newName: "Lakeside"},
		{name: "admin", actor: admin, claimID: "home", newName: "Lakeside"},
		{name: "stranger", actor: carol, claimID: "home", newName: "Mine", wantErr: market.ErrNotOwner},
		{name: "unknown claim", actor: seller, claimID: "nowhere", newName: "x", wantErr: market.ErrNoClaim},
		{name: "too long", actor: seller, claimID: "home", newName: strings.Repeat("a", 33), wantErr: market.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.m.RenameClaim(context.Background(), tt.actor, tt.claimID, tt.newName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RenameClaim() error = %v, want %v", err, tt.wantErr)
				}
				if len(h.names) != 0 {
					t.Error("name stored despite rejection")
				}
				return
			}
			if err != nil {
				t.Fatalf("RenameClaim() unexpected error: %v", err)
			}
			if h.names[tt.claimID] != tt.newName {
				t.Errorf("stored name = %q", h.names[tt.claimID])
			}
			if n := h.events.count(event.ClaimNameChanged); n != 1 {
				t.Errorf("claim.name_changed events = %d, want 1", n)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	h := newHarness(t)
	h.fund(1000, "buyer")
	s := h.listSale(t, 500)
	if _, err := h.m.Purchase(context.Background(), buyer, s.ID); err != nil {
		t.Fatal(err)
	}

	evts, err := h.m.Events(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	var types []event.Type
	for _, e := range evts {
		types = append(types, e.Type)
	}
	want := []event.Type{event.ListingCreated, event.TradeCompleted, event.ListingRemoved}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}
