package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jensholdgaard/claim-market/internal/event"
)

// EventLog implements event.Store as an append-only file of JSON lines.
type EventLog struct {
	mu     sync.Mutex
	path   string
	nextID int64
}

// NewEventLog opens the journal at path and continues its id sequence.
func NewEventLog(path string) (*EventLog, error) {
	l := &EventLog{path: path, nextID: 1}
	events, err := l.scan(func(event.Event) bool { return true })
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.ID >= l.nextID {
			l.nextID = e.ID + 1
		}
	}
	return l, nil
}

func (l *EventLog) Append(_ context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var buf []byte
	id := l.nextID
	for _, e := range events {
		e.ID = id
		id++
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding event (aggregate=%s): %w", e.AggregateID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("appending events: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	l.nextID = id
	return nil
}

func (l *EventLog) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scan(func(e event.Event) bool { return e.AggregateID == aggregateID })
}

func (l *EventLog) LoadByType(_ context.Context, t event.Type) ([]event.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scan(func(e event.Event) bool { return e.Type == t })
}

func (l *EventLog) scan(keep func(event.Event) bool) ([]event.Event, error) {
	f, err := os.Open(filepath.Clean(l.path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	var out []event.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("event log line %d: %w", line, err)
		}
		if keep(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	return out, nil
}
