package filestore

import (
	"context"
	"path/filepath"
	"sync"
)

// NameRepo implements naming.Repository as a claim id to name mapping.
type NameRepo struct {
	mu   sync.Mutex
	path string
}

// NewNameRepo returns a NameRepo writing into dir.
func NewNameRepo(dir string) *NameRepo {
	return &NameRepo{path: filepath.Join(dir, NamesFile)}
}

func (r *NameRepo) Name(_ context.Context, claimID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names, err := r.read()
	if err != nil {
		return "", err
	}
	return names[claimID], nil
}

func (r *NameRepo) SetName(_ context.Context, claimID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	names, err := r.read()
	if err != nil {
		return err
	}
	names[claimID] = name
	return writeYAML(r.path, names)
}

func (r *NameRepo) DeleteName(_ context.Context, claimID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	names, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := names[claimID]; !ok {
		return nil
	}
	delete(names, claimID)
	return writeYAML(r.path, names)
}

func (r *NameRepo) read() (map[string]string, error) {
	names := map[string]string{}
	if err := readYAML(r.path, &names); err != nil {
		return nil, err
	}
	return names, nil
}
