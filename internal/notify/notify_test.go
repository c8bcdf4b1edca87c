package notify_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

func TestInbox(t *testing.T) {
	ctx := context.Background()
	in := notify.NewInbox(3, clock.Mock{T: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)})

	for i := 1; i <= 5; i++ {
		in.Notify(ctx, "p1", fmt.Sprintf("msg %d", i))
	}
	in.Notify(ctx, "p2", "hello")

	if got := in.Pending("p1"); got != 3 {
		t.Errorf("Pending = %d, want 3", got)
	}
	msgs := in.Drain("p1")
	want := []string{"msg 3", "msg 4", "msg 5"}
	if len(msgs) != len(want) {
		t.Fatalf("Drain returned %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i].Text != want[i] {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Text, want[i])
		}
	}
	if got := in.Drain("p1"); len(got) != 0 {
		t.Errorf("second Drain returned %d messages", len(got))
	}
	if got := in.Pending("p2"); got != 1 {
		t.Errorf("other player's queue touched: %d", got)
	}
}

type recorder struct{ got []string }

func (r *recorder) Notify(_ context.Context, playerID, msg string) {
	r.got = append(r.got, playerID+":"+msg)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	notify.Multi{a, b}.Notify(context.Background(), "p1", "hi")
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("fan-out failed: %v %v", a.got, b.got)
	}
}

func TestBoard(t *testing.T) {
	ctx := context.Background()
	b := notify.NewBoard()
	l1 := world.Location{World: "world", X: 1, Y: 64, Z: 1}
	l2 := world.Location{World: "world", X: 2, Y: 64, Z: 2}
	first := sign.Lines{"[Auction]", "Min: $1k", "Steve", "Ends: 2h 0m"}
	second := sign.Lines{"[Auction]", "Min: $1k", "Steve", "Ends: 1h 59m"}

	b.Show(ctx, l1, first)
	b.Show(ctx, l2, first)
	b.Show(ctx, l1, second)

	updates := b.Drain()
	if len(updates) != 2 {
		t.Fatalf("Drain returned %d updates, want 2", len(updates))
	}
	if updates[0].Location != l1 || updates[0].Lines != second {
		t.Errorf("first update = %+v, want latest lines at l1", updates[0])
	}

	b.Show(ctx, l1, second)
	if got := b.Drain(); len(got) != 0 {
		t.Errorf("unchanged text queued %d updates", len(got))
	}

	b.Clear(ctx, l2)
	if _, ok := b.Lines(l2); ok {
		t.Error("cleared sign still has lines")
	}
	updates = b.Drain()
	if len(updates) != 1 || !updates[0].Cleared {
		t.Errorf("clear update = %+v", updates)
	}
	if got, ok := b.Lines(l1); !ok || got != second {
		t.Errorf("Lines(l1) = %q, %v", got, ok)
	}
}
