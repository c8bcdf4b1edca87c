package claims_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/world"
)

func loc(x, z int) world.Location { return world.Location{World: "world", X: x, Y: 64, Z: z} }

var (
	parent = claims.Claim{ID: "c1", OwnerID: "alice", Lesser: loc(0, 0), Greater: loc(31, 15)}
	child  = claims.Claim{ID: "c2", OwnerID: "alice", ParentID: "c1", Lesser: loc(4, 4), Greater: loc(7, 7)}
	admin  = claims.Claim{ID: "c3", Lesser: loc(100, 100), Greater: loc(109, 109)}
)

func TestClaimGeometry(t *testing.T) {
	if got := parent.Area(); got != 512 {
		t.Errorf("Area() = %d, want 512", got)
	}
	if got := parent.Dimensions(); got != "32x16" {
		t.Errorf("Dimensions() = %q, want 32x16", got)
	}
	if !parent.IsOwner("alice") || parent.IsOwner("bob") {
		t.Error("IsOwner mismatch")
	}
	if !admin.IsAdmin() || admin.IsOwner("") {
		t.Error("admin claim must have no owner")
	}
	if !child.IsSubclaim() || parent.IsSubclaim() {
		t.Error("IsSubclaim mismatch")
	}
	if parent.Contains(world.Location{World: "nether", X: 1, Z: 1}) {
		t.Error("Contains must check the world")
	}
}

func TestMemory_ClaimAt(t *testing.T) {
	m := claims.NewMemory(parent, child, admin)
	ctx := context.Background()

	tests := []struct {
		name   string
		at     world.Location
		wantID string
		found  bool
	}{
		{name: "parent", at: loc(20, 10), wantID: "c1", found: true},
		{name: "subclaim wins", at: loc(5, 5), wantID: "c2", found: true},
		{name: "corner inclusive", at: loc(31, 15), wantID: "c1", found: true},
		{name: "admin", at: loc(105, 105), wantID: "c3", found: true},
		{name: "wilderness", at: loc(50, 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok, err := m.ClaimAt(ctx, tt.at)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.found || c.ID != tt.wantID {
				t.Errorf("ClaimAt = %q, %v; want %q, %v", c.ID, ok, tt.wantID, tt.found)
			}
		})
	}
}

func TestMemory_Transfer(t *testing.T) {
	m := claims.NewMemory(parent)
	ctx := context.Background()

	if err := m.TransferOwnership(ctx, "c1", "bob"); err != nil {
		t.Fatal(err)
	}
	c, _, _ := m.Claim(ctx, "c1")
	if c.OwnerID != "bob" {
		t.Errorf("owner = %q, want bob", c.OwnerID)
	}
	if err := m.TransferOwnership(ctx, "nope", "bob"); !errors.Is(err, claims.ErrNotFound) {
		t.Errorf("transfer of unknown claim error = %v, want ErrNotFound", err)
	}

	_ = m.GrantBonusCapacity(ctx, "bob", 512)
	_ = m.GrantBonusCapacity(ctx, "bob", 10)
	if got := m.Bonus("bob"); got != 522 {
		t.Errorf("Bonus = %d, want 522", got)
	}
}

func TestHTTP(t *testing.T) {
	var (
		gotOwner string
		gotDelta int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /claims/at", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("x") != "20" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(parent)
	})
	mux.HandleFunc("GET /claims/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "c1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(parent)
	})
	mux.HandleFunc("POST /claims/{id}/owner", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "locked" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		var body struct {
			OwnerID string `json:"owner_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotOwner = body.OwnerID
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /players/{id}/bonus-capacity", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Delta int `json:"delta"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotDelta = body.Delta
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg := claims.NewHTTP(srv.URL+"/", time.Second)
	ctx := context.Background()

	c, ok, err := reg.ClaimAt(ctx, loc(20, 10))
	if err != nil || !ok || c.ID != "c1" || c.Area() != 512 {
		t.Errorf("ClaimAt = %+v, %v, %v", c, ok, err)
	}
	if _, ok, err := reg.ClaimAt(ctx, loc(99, 99)); ok || err != nil {
		t.Errorf("ClaimAt(wilderness) = %v, %v; want not found", ok, err)
	}
	if _, ok, err := reg.Claim(ctx, "missing"); ok || err != nil {
		t.Errorf("Claim(missing) = %v, %v; want not found", ok, err)
	}

	if err := reg.TransferOwnership(ctx, "c1", "bob"); err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if gotOwner != "bob" {
		t.Errorf("owner sent = %q, want bob", gotOwner)
	}
	if err := reg.TransferOwnership(ctx, "locked", "bob"); !errors.Is(err, claims.ErrTransferRejected) {
		t.Errorf("TransferOwnership(locked) error = %v, want ErrTransferRejected", err)
	}

	if err := reg.GrantBonusCapacity(ctx, "bob", 512); err != nil {
		t.Fatalf("GrantBonusCapacity: %v", err)
	}
	if gotDelta != 512 {
		t.Errorf("delta sent = %d, want 512", gotDelta)
	}
}
