package clock_test

import (
	"testing"
	"time"

	"github.com/jensholdgaard/claim-market/internal/clock"
)

func TestReal_Now(t *testing.T) {
	clk := clock.Real{}
	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestMock_Now(t *testing.T) {
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Mock{T: fixed}

	if got := clk.Now(); !got.Equal(fixed) {
		t.Errorf("Mock.Now() = %v, want %v", got, fixed)
	}
	if got := clk.Now(); !got.Equal(fixed) {
		t.Errorf("Mock.Now() second call = %v, want %v", got, fixed)
	}
}

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	clk.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !clk.Now().Equal(want) {
		t.Errorf("after Advance Now() = %v, want %v", clk.Now(), want)
	}

	later := start.Add(72 * time.Hour)
	clk.Set(later)
	if !clk.Now().Equal(later) {
		t.Errorf("after Set Now() = %v, want %v", clk.Now(), later)
	}
}
