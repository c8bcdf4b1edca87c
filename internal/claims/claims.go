// Package claims is the market's view of the external land-claim registry.
package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/jensholdgaard/claim-market/internal/world"
)

// Errors returned by registries.
var (
	ErrNotFound         = errors.New("claim not found")
	ErrTransferRejected = errors.New("ownership transfer rejected")
)

// Claim is a rectangular owned region. Heights are ignored: a claim covers
// every Y between its corners' X and Z bounds.
type Claim struct {
	ID       string         `json:"id"`
	OwnerID  string         `json:"owner_id,omitempty"`  // empty for admin claims
	ParentID string         `json:"parent_id,omitempty"` // set for subclaims
	Lesser   world.Location `json:"lesser"`
	Greater  world.Location `json:"greater"`
}

// IsOwner reports whether playerID owns the claim.
func (c Claim) IsOwner(playerID string) bool {
	return c.OwnerID != "" && c.OwnerID == playerID
}

// IsAdmin reports whether the claim has no player owner.
func (c Claim) IsAdmin() bool { return c.OwnerID == "" }

// IsSubclaim reports whether the claim is nested inside another.
func (c Claim) IsSubclaim() bool { return c.ParentID != "" }

// Width is the X extent in blocks.
func (c Claim) Width() int { return c.Greater.X - c.Lesser.X + 1 }

// Length is the Z extent in blocks.
func (c Claim) Length() int { return c.Greater.Z - c.Lesser.Z + 1 }

// Area returns the claim's surface in blocks.
func (c Claim) Area() int { return c.Width() * c.Length() }

// Dimensions returns the "WxL" descriptor.
func (c Claim) Dimensions() string { return fmt.Sprintf("%dx%d", c.Width(), c.Length()) }

// LesserCorner is the corner with the smallest coordinates. It identifies the
// claim for "already listed" checks.
func (c Claim) LesserCorner() world.Location { return c.Lesser }

// GreaterCorner is the corner with the largest coordinates.
func (c Claim) GreaterCorner() world.Location { return c.Greater }

// Contains reports whether loc lies inside the claim's X/Z bounds.
func (c Claim) Contains(loc world.Location) bool {
	return loc.World == c.Lesser.World &&
		loc.X >= c.Lesser.X && loc.X <= c.Greater.X &&
		loc.Z >= c.Lesser.Z && loc.Z <= c.Greater.Z
}

// Registry answers ownership questions about claims and changes owners.
type Registry interface {
	// ClaimAt returns the innermost claim covering loc.
	ClaimAt(ctx context.Context, loc world.Location) (Claim, bool, error)
	// Claim returns the claim with the given id.
	Claim(ctx context.Context, id string) (Claim, bool, error)
	// TransferOwnership makes newOwnerID the owner of the claim.
	TransferOwnership(ctx context.Context, claimID, newOwnerID string) error
	// GrantBonusCapacity adds delta blocks to a player's claim allowance.
	GrantBonusCapacity(ctx context.Context, playerID string, delta int) error
}
