package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/api"
	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/economy"
	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/health"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	t0     = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	seller = market.Actor{ID: "seller", Name: "Steve"}
	buyer  = market.Actor{ID: "buyer", Name: "Alex"}
	signAt = world.Location{World: "world", X: 1, Y: 64, Z: 1}
)

var testSale = listing.Sale{
	Common: listing.Common{ID: "sale_1", SellerID: "seller", SellerName: "Steve", Sign: signAt, ClaimID: "c1", Area: 64, Dimensions: "8x8", CreatedAt: t0},
	Price:  10000,
}

var testAuction = listing.Auction{
	Common:    listing.Common{ID: "auction_1", SellerID: "seller", SellerName: "Steve", ClaimID: "c2", CreatedAt: t0},
	MinBid:    100,
	ExpiresAt: t0.Add(24 * time.Hour),
	Bids: []listing.Bid{
		{BidderID: "secret-bidder", BidderName: "Sam", Amount: 777777, PlacedAt: t0},
	},
}

// mockMarket records calls and returns canned results.
type mockMarket struct {
	err      error
	listings map[string]listing.Listing
	records  []ledger.Record

	lastActor  market.Actor
	lastID     string
	lastAmount int64
	lastLines  []string
	lastCount  int
	lastPlayer string
	cancelled  []string
}

func newMockMarket() *mockMarket {
	return &mockMarket{listings: map[string]listing.Listing{
		testSale.ID:    testSale,
		testAuction.ID: testAuction,
	}}
}

func (m *mockMarket) Validate(_ context.Context, actor market.Actor, _ world.Location) (claims.Claim, error) {
	m.lastActor = actor
	if m.err != nil {
		return claims.Claim{}, m.err
	}
	return claims.Claim{ID: "c1", OwnerID: actor.ID,
		Lesser:  world.Location{World: "world"},
		Greater: world.Location{World: "world", X: 7, Z: 7}}, nil
}

func (m *mockMarket) CreateFromSign(_ context.Context, actor market.Actor, _ world.Location, lines []string) (listing.Listing, error) {
	m.lastActor, m.lastLines = actor, lines
	if m.err != nil {
		return nil, m.err
	}
	return testSale, nil
}

func (m *mockMarket) CancelListing(_ context.Context, actor market.Actor, _ world.Location) (listing.Listing, error) {
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return testSale, nil
}

func (m *mockMarket) CancelAuction(_ context.Context, id string) (bool, error) {
	m.cancelled = append(m.cancelled, id)
	return m.err == nil, m.err
}

func (m *mockMarket) Purchase(_ context.Context, b market.Actor, id string) (market.TradeResult, error) {
	m.lastActor, m.lastID = b, id
	if m.err != nil {
		return market.TradeResult{}, m.err
	}
	return market.TradeResult{TxID: "TX000001", Type: ledger.TypeSale, ListingID: id, SellerID: "seller", BuyerID: b.ID, Price: 10000}, nil
}

func (m *mockMarket) PlaceBid(_ context.Context, b market.Actor, id string, amount int64) (market.BidResult, error) {
	m.lastActor, m.lastID, m.lastAmount = b, id, amount
	if m.err != nil {
		return market.BidResult{}, m.err
	}
	return market.BidResult{Outcome: market.BidAccepted, Amount: amount}, nil
}

func (m *mockMarket) RenameClaim(_ context.Context, actor market.Actor, claimID, _ string) error {
	m.lastActor, m.lastID = actor, claimID
	return m.err
}

func (m *mockMarket) Listings(sellerID string) []listing.Listing {
	m.lastPlayer = sellerID
	return []listing.Listing{testSale, testAuction}
}

func (m *mockMarket) Listing(id string) (listing.Listing, bool) {
	l, ok := m.listings[id]
	return l, ok
}

func (m *mockMarket) SignLines(loc world.Location) (sign.Lines, bool) {
	if loc != signAt {
		return sign.Lines{}, false
	}
	return sign.SaleLines(testSale), true
}

func (m *mockMarket) BidsBy(playerID string) []market.OwnBid {
	a := testAuction
	a.Bids = nil
	return []market.OwnBid{{Auction: a, Bid: listing.Bid{BidderID: playerID, Amount: 500, PlacedAt: t0}}}
}

func (m *mockMarket) Recent(count int, playerID string) []ledger.Record {
	m.lastCount, m.lastPlayer = count, playerID
	return m.records
}

func (m *mockMarket) Transaction(id string) (ledger.Record, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return ledger.Record{}, fmt.Errorf("%w: %s", market.ErrNotFound, id)
}

func (m *mockMarket) Events(_ context.Context, listingID string) ([]event.Event, error) {
	return []event.Event{{ID: 1, AggregateID: listingID, Type: event.ListingCreated, Data: json.RawMessage(`{}`), CreatedAt: t0}}, nil
}

type fakeBalances struct {
	*economy.Memory
	adjusted []string
}

func (f *fakeBalances) Adjust(ctx context.Context, playerID string, amount int64, reason string) error {
	f.adjusted = append(f.adjusted, reason)
	switch {
	case amount > 0:
		return f.Deposit(ctx, playerID, amount)
	case amount < 0:
		return f.Withdraw(ctx, playerID, -amount)
	default:
		return economy.ErrInvalidAmount
	}
}

type testServer struct {
	handler  http.Handler
	market   *mockMarket
	balances *fakeBalances
	inbox    *notify.Inbox
	board    *notify.Board
	health   *health.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		market:   newMockMarket(),
		balances: &fakeBalances{Memory: economy.NewMemory("$", 0)},
		inbox:    notify.NewInbox(10, clock.Mock{T: t0}),
		board:    notify.NewBoard(),
		health:   health.NewHandler(clock.Mock{T: t0}),
	}
	ts.health.SetReady(true)
	ts.handler = api.New(api.Deps{
		Market:   ts.market,
		Balances: ts.balances,
		Inbox:    ts.inbox,
		Board:    ts.board,
		Health:   ts.health,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAlwaysServed(t *testing.T) {
	ts := newTestServer(t)
	ts.health.SetReady(false)

	if rec := ts.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d, want 503", rec.Code)
	}
}

func TestNotReady(t *testing.T) {
	ts := newTestServer(t)
	ts.health.SetReady(false)

	rec := ts.do(t, http.MethodPost, "/v1/sales/sale_1/purchase", map[string]any{"actor": buyer})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decode[api.APIError](t, rec); got.Code != api.ErrCodeNotReady {
		t.Errorf("code = %q, want %q", got.Code, api.ErrCodeNotReady)
	}
	if ts.market.lastID != "" {
		t.Error("market was called while not ready")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   api.ErrorCode
	}{
		{"invalid format", fmt.Errorf("%w: bad", market.ErrInvalidFormat), http.StatusBadRequest, api.ErrCodeInvalidFormat},
		{"rejection", market.ErrSelfTrade, http.StatusUnprocessableEntity, api.ErrCodeValidationFailed},
		{"not found", fmt.Errorf("%w: sale_x", market.ErrNotFound), http.StatusNotFound, api.ErrCodeNotFound},
		{"funds", fmt.Errorf("buyer: %w", market.ErrInsufficientFunds), http.StatusPaymentRequired, api.ErrCodeInsufficientFunds},
		{"stale", market.ErrStaleListing, http.StatusConflict, api.ErrCodeStaleListing},
		{"saga", fmt.Errorf("%w: transfer ownership: boom", market.ErrSagaStep), http.StatusConflict, api.ErrCodeTradeCancelled},
		{"saga wrapping funds", fmt.Errorf("%w: withdraw_buyer: %w", market.ErrSagaStep, market.ErrInsufficientFunds), http.StatusConflict, api.ErrCodeTradeCancelled},
		{"persistence", fmt.Errorf("%w: disk full", market.ErrPersistence), http.StatusInternalServerError, api.ErrCodeInternalError},
		{"unknown", errors.New("registry down"), http.StatusInternalServerError, api.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.market.err = tt.err

			rec := ts.do(t, http.MethodPost, "/v1/sales/sale_1/purchase", map[string]any{"actor": buyer})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			got := decode[api.APIError](t, rec)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if strings.Contains(got.Message, "boom") || strings.Contains(got.Message, "disk") {
				t.Errorf("message leaks internals: %q", got.Message)
			}
		})
	}
}

func TestPurchase(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/sales/sale_1/purchase", map[string]any{"actor": buyer})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ts.market.lastActor != buyer || ts.market.lastID != "sale_1" {
		t.Errorf("Purchase called with %+v, %q", ts.market.lastActor, ts.market.lastID)
	}
	if got := decode[market.TradeResult](t, rec); got.TxID != "TX000001" || got.Price != 10000 {
		t.Errorf("result = %+v", got)
	}
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"no body", http.MethodPost, "/v1/sales/sale_1/purchase", nil},
		{"no actor", http.MethodPost, "/v1/sales/sale_1/purchase", map[string]any{}},
		{"sign without world", http.MethodPost, "/v1/signs", map[string]any{"actor": seller, "lines": []string{"[For Sale]", "10k"}}},
		{"bid without amount", http.MethodPost, "/v1/auctions/auction_1/bids", map[string]any{"actor": buyer}},
		{"bad location query", http.MethodGet, "/v1/signs?location=nowhere", nil},
		{"bad count", http.MethodGet, "/v1/transactions?count=-1", nil},
		{"zero adjustment", http.MethodPost, "/v1/admin/balances/p1", map[string]any{"amount": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestCreateFromSign(t *testing.T) {
	ts := newTestServer(t)
	lines := []string{"[For Sale]", "$10k"}
	rec := ts.do(t, http.MethodPost, "/v1/signs", map[string]any{"actor": seller, "location": signAt, "lines": lines})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(ts.market.lastLines) != 2 || ts.market.lastLines[1] != "$10k" {
		t.Errorf("lines = %v", ts.market.lastLines)
	}
	got := decode[map[string]any](t, rec)
	if got["id"] != "sale_1" || got["kind"] != "sale" || got["price"] != float64(10000) {
		t.Errorf("body = %v", got)
	}
}

func TestValidateSign(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/signs/validate", map[string]any{"actor": seller, "location": signAt})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[map[string]any](t, rec)
	if got["area"] != float64(64) || got["dimensions"] != "8x8" {
		t.Errorf("body = %v", got)
	}

	ts.market.err = market.ErrSubclaim
	if rec := ts.do(t, http.MethodPost, "/v1/signs/validate", map[string]any{"actor": seller, "location": signAt}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("subclaim status = %d, want 422", rec.Code)
	}
}

func TestBreakSign(t *testing.T) {
	ts := newTestServer(t)
	ts.market.err = market.ErrNotSeller
	rec := ts.do(t, http.MethodDelete, "/v1/signs", map[string]any{"actor": buyer, "location": signAt})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("stranger status = %d, want 422", rec.Code)
	}

	ts.market.err = nil
	rec = ts.do(t, http.MethodDelete, "/v1/signs", map[string]any{"actor": seller, "location": signAt})
	if rec.Code != http.StatusOK {
		t.Errorf("seller status = %d, want 200", rec.Code)
	}
}

func TestSigns(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/signs?location=world:1:64:1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Lines []string `json:"lines"`
	}](t, rec)
	if len(got.Lines) != 4 || got.Lines[0] != "[For Sale]" {
		t.Errorf("lines = %v", got.Lines)
	}

	if rec := ts.do(t, http.MethodGet, "/v1/signs?location=world:9:9:9", nil); rec.Code != http.StatusNotFound {
		t.Errorf("empty sign status = %d, want 404", rec.Code)
	}

	ts.board.Show(context.Background(), signAt, sign.SaleLines(testSale))
	ts.board.Clear(context.Background(), world.Location{World: "world", X: 5})
	updates := decode[struct {
		Updates []notify.Update `json:"updates"`
	}](t, ts.do(t, http.MethodGet, "/v1/signs/updates", nil))
	if len(updates.Updates) != 2 || !updates.Updates[1].Cleared {
		t.Errorf("updates = %+v", updates.Updates)
	}
	again := decode[struct {
		Updates []notify.Update `json:"updates"`
	}](t, ts.do(t, http.MethodGet, "/v1/signs/updates", nil))
	if again.Updates == nil || len(again.Updates) != 0 {
		t.Errorf("second drain = %+v, want empty list", again.Updates)
	}
}

func TestListings_SealBids(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/listings?seller=seller", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.market.lastPlayer != "seller" {
		t.Errorf("seller filter = %q", ts.market.lastPlayer)
	}
	body := rec.Body.String()
	for _, secret := range []string{"secret-bidder", "777777"} {
		if strings.Contains(body, secret) {
			t.Errorf("listings reveal %q: %s", secret, body)
		}
	}

	rec = ts.do(t, http.MethodGet, "/v1/listings/auction_1", nil)
	got := decode[map[string]any](t, rec)
	if got["bid_count"] != float64(1) || got["min_bid"] != float64(100) {
		t.Errorf("auction view = %v", got)
	}
	if strings.Contains(rec.Body.String(), "777777") {
		t.Error("auction view reveals a bid amount")
	}

	if rec := ts.do(t, http.MethodGet, "/v1/listings/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown listing status = %d, want 404", rec.Code)
	}
}

func TestPlaceBid(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/auctions/auction_1/bids", map[string]any{"actor": buyer, "amount": "50k"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ts.market.lastAmount != 50000 {
		t.Errorf("amount = %d, want 50000", ts.market.lastAmount)
	}
	if got := decode[map[string]any](t, rec); got["outcome"] != "accepted" {
		t.Errorf("body = %v", got)
	}

	rec = ts.do(t, http.MethodPost, "/v1/auctions/auction_1/bids", map[string]any{"actor": buyer, "amount": "lots"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unparseable amount status = %d, want 400", rec.Code)
	}
	if got := decode[api.APIError](t, rec); got.Code != api.ErrCodeInvalidFormat {
		t.Errorf("code = %q", got.Code)
	}
}

func TestCancelAuction(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		actor      market.Actor
		wantStatus int
		wantCancel bool
	}{
		{"seller", "auction_1", seller, http.StatusNoContent, true},
		{"admin", "auction_1", market.Actor{ID: "op", Admin: true}, http.StatusNoContent, true},
		{"stranger", "auction_1", buyer, http.StatusUnprocessableEntity, false},
		{"sale id", "sale_1", seller, http.StatusNotFound, false},
		{"unknown", "auction_x", seller, http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodDelete, "/v1/auctions/"+tt.id, map[string]any{"actor": tt.actor})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := len(ts.market.cancelled) == 1; got != tt.wantCancel {
				t.Errorf("cancelled = %v, want %v", ts.market.cancelled, tt.wantCancel)
			}
		})
	}
}

func TestPlayerViews(t *testing.T) {
	ts := newTestServer(t)
	ts.inbox.Notify(context.Background(), "buyer", "You won!")
	ts.balances.SetBalance("buyer", 1500)

	bids := decode[struct {
		Bids []struct {
			Amount int64 `json:"amount"`
		} `json:"bids"`
	}](t, ts.do(t, http.MethodGet, "/v1/players/buyer/bids", nil))
	if len(bids.Bids) != 1 || bids.Bids[0].Amount != 500 {
		t.Errorf("bids = %+v", bids.Bids)
	}

	msgs := decode[struct {
		Messages []notify.Message `json:"messages"`
	}](t, ts.do(t, http.MethodGet, "/v1/players/buyer/notifications", nil))
	if len(msgs.Messages) != 1 || msgs.Messages[0].Text != "You won!" {
		t.Errorf("messages = %+v", msgs.Messages)
	}
	if ts.inbox.Pending("buyer") != 0 {
		t.Error("inbox not drained")
	}

	bal := decode[map[string]any](t, ts.do(t, http.MethodGet, "/v1/players/buyer/balance", nil))
	if bal["balance"] != float64(1500) || bal["formatted"] != "$1,500" {
		t.Errorf("balance = %v", bal)
	}
}

func TestTransactions(t *testing.T) {
	ts := newTestServer(t)
	ts.market.records = []ledger.Record{{
		Seq: 1, ID: "TX000001", Type: ledger.TypeAuction, Timestamp: t0,
		Seller: ledger.Party{ID: "seller", Name: "Steve"}, Buyer: ledger.Party{ID: "buyer", Name: "Alex"},
		Price: 80, WinningBid: 100, BidCount: 3, ClaimArea: 64, ClaimDimensions: "8x8", ClaimLocation: "world @ 0, 64, 0",
	}}

	rec := ts.do(t, http.MethodGet, "/v1/transactions?player=buyer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.market.lastCount != 10 || ts.market.lastPlayer != "buyer" {
		t.Errorf("Recent(%d, %q), want Recent(10, buyer)", ts.market.lastCount, ts.market.lastPlayer)
	}
	list := decode[struct {
		Transactions []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"transactions"`
	}](t, rec)
	if len(list.Transactions) != 1 || list.Transactions[0].Summary != "[TX000001] AUCTION Steve -> Alex for $80 (64 blocks)" {
		t.Errorf("transactions = %+v", list.Transactions)
	}

	ts.do(t, http.MethodGet, "/v1/transactions?count=3", nil)
	if ts.market.lastCount != 3 {
		t.Errorf("count = %d, want 3", ts.market.lastCount)
	}

	detail := decode[map[string]any](t, ts.do(t, http.MethodGet, "/v1/transactions/TX000001", nil))
	if d, _ := detail["detail"].(string); !strings.Contains(d, "Total Bids: 3") {
		t.Errorf("detail = %q", d)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/transactions/TX999999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown transaction status = %d, want 404", rec.Code)
	}
}

func TestRenameClaim(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/v1/claims/c1/name", map[string]any{"actor": seller, "name": "Cozy Cottage"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d: %s", rec.Code, rec.Body)
	}
	if ts.market.lastID != "c1" {
		t.Errorf("claim = %q", ts.market.lastID)
	}

	ts.market.err = market.ErrNotOwner
	if rec := ts.do(t, http.MethodPut, "/v1/claims/c1/name", map[string]any{"actor": buyer, "name": "Mine"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("non-owner status = %d, want 422", rec.Code)
	}
}

func TestAdjustBalance(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/admin/balances/p1", map[string]any{"amount": 500, "reason": "event prize"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec); got["balance"] != float64(500) {
		t.Errorf("body = %v", got)
	}

	rec = ts.do(t, http.MethodPost, "/v1/admin/balances/p1", map[string]any{"amount": -900, "reason": "fine"})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("overdraw status = %d, want 402", rec.Code)
	}
	if len(ts.balances.adjusted) != 2 || ts.balances.adjusted[0] != "event prize" {
		t.Errorf("adjustments = %v", ts.balances.adjusted)
	}
}

func TestListingEvents(t *testing.T) {
	ts := newTestServer(t)
	got := decode[struct {
		Events []event.Event `json:"events"`
	}](t, ts.do(t, http.MethodGet, "/v1/admin/listings/sale_1/events", nil))
	if len(got.Events) != 1 || got.Events[0].AggregateID != "sale_1" {
		t.Errorf("events = %+v", got.Events)
	}
}
