// Package filestore provides a store.Driver that keeps every repository in
// YAML documents under one data directory. Each write replaces the whole
// document through a rename, so a crash leaves either the old or the new
// version on disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/store"
)

// File names inside the data directory.
const (
	SalesFile    = "sales.yml"
	AuctionsFile = "auctions.yml"
	LedgerFile   = "ledger.yml"
	NamesFile    = "names.yml"
	EventsFile   = "events.jsonl"
)

func init() {
	store.Register("file", openFile)
}

// openFile is the store.Driver for the "file" backend.
func openFile(_ context.Context, cfg config.DatabaseConfig, _ clock.Clock) (*store.Repositories, error) {
	dir := cfg.DataDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	events, err := NewEventLog(filepath.Join(dir, EventsFile))
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Listings: NewListingRepo(dir),
		Ledger:   NewLedgerRepo(dir),
		Events:   events,
		Names:    NewNameRepo(dir),
		Closer:   store.CloserFunc(func() error { return nil }),
		Ping:     func(context.Context) error { return ping(dir) },
	}, nil
}

func ping(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", dir)
	}
	return nil
}

// readYAML decodes path into v. A missing or empty file leaves v untouched.
func readYAML(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeYAML replaces path with the encoding of v.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
