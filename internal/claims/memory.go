package claims

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jensholdgaard/claim-market/internal/world"
)

// Memory is an in-process Registry used for local runs and tests.
type Memory struct {
	mu     sync.RWMutex
	claims map[string]Claim
	bonus  map[string]int
}

// NewMemory returns a Memory registry holding the given claims.
func NewMemory(cs ...Claim) *Memory {
	m := &Memory{
		claims: make(map[string]Claim, len(cs)),
		bonus:  make(map[string]int),
	}
	for _, c := range cs {
		m.claims[c.ID] = c
	}
	return m
}

// Put adds or replaces a claim.
func (m *Memory) Put(c Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[c.ID] = c
}

// Delete removes a claim.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
}

// Bonus returns the bonus capacity granted to a player.
func (m *Memory) Bonus(playerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bonus[playerID]
}

// ClaimAt returns the claim covering loc. Subclaims win over their parent.
func (m *Memory) ClaimAt(_ context.Context, loc world.Location) (Claim, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Claim
	for _, c := range m.claims {
		if c.Contains(loc) {
			hits = append(hits, c)
		}
	}
	if len(hits) == 0 {
		return Claim{}, false, nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].IsSubclaim() != hits[j].IsSubclaim() {
			return hits[i].IsSubclaim()
		}
		return hits[i].ID < hits[j].ID
	})
	return hits[0], true, nil
}

// Claim returns the claim with the given id.
func (m *Memory) Claim(_ context.Context, id string) (Claim, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	return c, ok, nil
}

// TransferOwnership reassigns the claim.
func (m *Memory) TransferOwnership(_ context.Context, claimID, newOwnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, claimID)
	}
	c.OwnerID = newOwnerID
	m.claims[claimID] = c
	return nil
}

// GrantBonusCapacity adds delta to the player's bonus.
func (m *Memory) GrantBonusCapacity(_ context.Context, playerID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bonus[playerID] += delta
	return nil
}
