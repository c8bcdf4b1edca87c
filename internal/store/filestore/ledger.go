package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jensholdgaard/claim-market/internal/ledger"
)

// ledgerDoc is the on-disk ledger: the counter and every record by id.
type ledgerDoc struct {
	Counter      int64                    `yaml:"counter"`
	Transactions map[string]ledger.Record `yaml:"transactions"`
}

// LedgerRepo implements ledger.Repository in a single document, so the
// counter and a new record always land in the same write.
type LedgerRepo struct {
	mu   sync.Mutex
	path string
}

// NewLedgerRepo returns a LedgerRepo writing into dir.
func NewLedgerRepo(dir string) *LedgerRepo {
	return &LedgerRepo{path: filepath.Join(dir, LedgerFile)}
}

func (r *LedgerRepo) Load(_ context.Context) (int64, []ledger.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return 0, nil, err
	}
	records := make([]ledger.Record, 0, len(doc.Transactions))
	for _, rec := range doc.Transactions {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return doc.Counter, records, nil
}

func (r *LedgerRepo) Append(_ context.Context, counter int64, rec ledger.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	if _, dup := doc.Transactions[rec.ID]; dup {
		return fmt.Errorf("transaction %s already recorded", rec.ID)
	}
	doc.Transactions[rec.ID] = rec
	doc.Counter = counter
	return writeYAML(r.path, doc)
}

func (r *LedgerRepo) read() (ledgerDoc, error) {
	doc := ledgerDoc{}
	if err := readYAML(r.path, &doc); err != nil {
		return ledgerDoc{}, err
	}
	if doc.Transactions == nil {
		doc.Transactions = make(map[string]ledger.Record)
	}
	return doc, nil
}
