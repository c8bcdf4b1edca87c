// Package store selects the persistence backend for listings, the ledger,
// the event journal and claim names.
package store

import (
	"context"
	"io"

	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/naming"
)

// Repositories groups all repository implementations returned by a store driver.
type Repositories struct {
	Listings listing.Repository
	Ledger   ledger.Repository
	Events   event.Store
	Names    naming.Repository
	// Closer is called to release underlying resources (e.g. DB connection).
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// Close releases the backend, if it holds anything.
func (r *Repositories) Close() error {
	if r.Closer == nil {
		return nil
	}
	return r.Closer.Close()
}

// CloserFunc adapts a func() error into an io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
