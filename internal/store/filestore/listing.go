package filestore

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jensholdgaard/claim-market/internal/listing"
)

// ListingRepo implements listing.Repository with one document per listing
// kind, each a mapping from listing id to the listing.
type ListingRepo struct {
	mu  sync.Mutex
	dir string
}

// NewListingRepo returns a ListingRepo writing into dir.
func NewListingRepo(dir string) *ListingRepo {
	return &ListingRepo{dir: dir}
}

func (r *ListingRepo) LoadSales(_ context.Context) ([]listing.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := map[string]listing.Sale{}
	if err := readYAML(filepath.Join(r.dir, SalesFile), &doc); err != nil {
		return nil, err
	}
	out := make([]listing.Sale, 0, len(doc))
	for id, s := range doc {
		s.ID = id
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return older(out[i].Common, out[j].Common) })
	return out, nil
}

func (r *ListingRepo) SaveSales(_ context.Context, sales []listing.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := make(map[string]listing.Sale, len(sales))
	for _, s := range sales {
		doc[s.ID] = s
	}
	return writeYAML(filepath.Join(r.dir, SalesFile), doc)
}

func (r *ListingRepo) LoadAuctions(_ context.Context) ([]listing.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := map[string]listing.Auction{}
	if err := readYAML(filepath.Join(r.dir, AuctionsFile), &doc); err != nil {
		return nil, err
	}
	out := make([]listing.Auction, 0, len(doc))
	for id, a := range doc {
		a.ID = id
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return older(out[i].Common, out[j].Common) })
	return out, nil
}

func (r *ListingRepo) SaveAuctions(_ context.Context, auctions []listing.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := make(map[string]listing.Auction, len(auctions))
	for _, a := range auctions {
		doc[a.ID] = a
	}
	return writeYAML(filepath.Join(r.dir, AuctionsFile), doc)
}

func older(a, b listing.Common) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
