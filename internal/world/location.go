// Package world holds the block-coordinate location shared by listings,
// signs and claims.
package world

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a block position in a named world.
type Location struct {
	World string `json:"world" yaml:"world" db:"world"`
	X     int    `json:"x" yaml:"x" db:"x"`
	Y     int    `json:"y" yaml:"y" db:"y"`
	Z     int    `json:"z" yaml:"z" db:"z"`
}

// Key returns the index key "world:x:y:z".
func (l Location) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d", l.World, l.X, l.Y, l.Z)
}

// String renders the location the way transaction records show it.
func (l Location) String() string {
	return fmt.Sprintf("%s @ %d, %d, %d", l.World, l.X, l.Y, l.Z)
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l == Location{}
}

// ParseKey is the inverse of Key. World names may themselves contain colons,
// so the coordinates are taken from the right.
func ParseKey(key string) (Location, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 4 {
		return Location{}, fmt.Errorf("location %q: want world:x:y:z", key)
	}
	n := len(parts)
	var coords [3]int
	for i, p := range parts[n-3:] {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Location{}, fmt.Errorf("location %q: coordinate %q: %w", key, p, err)
		}
		coords[i] = v
	}
	world := strings.Join(parts[:n-3], ":")
	if world == "" {
		return Location{}, fmt.Errorf("location %q: empty world", key)
	}
	return Location{World: world, X: coords[0], Y: coords[1], Z: coords[2]}, nil
}
