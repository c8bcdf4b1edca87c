package notify

import (
	"context"
	"sync"

	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

// Display shows text on, or clears, the sign at a location.
type Display interface {
	Show(ctx context.Context, loc world.Location, lines sign.Lines)
	Clear(ctx context.Context, loc world.Location)
}

// Update is a pending change to one sign. Cleared updates carry no lines.
type Update struct {
	Location world.Location `json:"location"`
	Lines    sign.Lines     `json:"lines"`
	Cleared  bool           `json:"cleared"`
}

// Board is a Display that remembers current sign text and queues changes
// for the host. Only the latest change per sign stays queued.
type Board struct {
	mu      sync.Mutex
	current map[string]sign.Lines
	pending map[string]Update
	order   []string
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{
		current: make(map[string]sign.Lines),
		pending: make(map[string]Update),
	}
}

// Show implements Display.
func (b *Board) Show(_ context.Context, loc world.Location, lines sign.Lines) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := loc.Key()
	if cur, ok := b.current[key]; ok && cur == lines {
		return
	}
	b.current[key] = lines
	b.queueLocked(key, Update{Location: loc, Lines: lines})
}

// Clear implements Display.
func (b *Board) Clear(_ context.Context, loc world.Location) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := loc.Key()
	delete(b.current, key)
	b.queueLocked(key, Update{Location: loc, Cleared: true})
}

func (b *Board) queueLocked(key string, u Update) {
	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	b.pending[key] = u
}

// Lines returns the text currently shown at loc.
func (b *Board) Lines(loc world.Location) (sign.Lines, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.current[loc.Key()]
	return l, ok
}

// Drain returns queued updates in the order their signs first changed.
func (b *Board) Drain() []Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Update, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.pending[key])
	}
	b.pending = make(map[string]Update)
	b.order = nil
	return out
}
