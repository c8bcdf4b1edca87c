// Package notify delivers player messages and sign text to the game host,
// which drains them over HTTP.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jensholdgaard/claim-market/internal/clock"
)

// Notifier sends a message to a player.
type Notifier interface {
	Notify(ctx context.Context, playerID, msg string)
}

// Multi fans a message out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, playerID, msg string) {
	for _, n := range m {
		n.Notify(ctx, playerID, msg)
	}
}

// Message is a queued player notification.
type Message struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Inbox queues messages per player. Each queue holds at most size messages;
// the oldest is dropped when a new one arrives at a full queue.
type Inbox struct {
	mu    sync.Mutex
	size  int
	msgs  map[string][]Message
	clock clock.Clock
}

// NewInbox returns an Inbox keeping up to size messages per player.
func NewInbox(size int, clk clock.Clock) *Inbox {
	return &Inbox{size: size, msgs: make(map[string][]Message), clock: clk}
}

// Notify implements Notifier.
func (in *Inbox) Notify(_ context.Context, playerID, msg string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	q := append(in.msgs[playerID], Message{Text: msg, At: in.clock.Now()})
	if len(q) > in.size {
		q = q[len(q)-in.size:]
	}
	in.msgs[playerID] = q
}

// Drain returns and forgets every queued message for the player, oldest first.
func (in *Inbox) Drain(playerID string) []Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	q := in.msgs[playerID]
	delete(in.msgs, playerID)
	return q
}

// Pending returns how many messages wait for the player.
func (in *Inbox) Pending(playerID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs[playerID])
}
