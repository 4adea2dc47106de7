// Package maps loads the static map catalog. Sessions only consume map
// names for rotation; geometry stays opaque to the server.
package maps

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/tailscale/hujson"
)

var ErrEmptyCatalog = errors.New("map catalog has no maps")

// Info is the slice of per-map metadata the server cares about. The
// catalog file carries geometry too; clients fetch that separately.
type Info struct {
	Name string `json:"name"`
}

type Catalog struct {
	names []string
}

// Load reads a jsonc catalog file keyed by map id, each entry carrying
// at least a display name. An unreadable catalog is fatal to the caller.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map catalog: %w", err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("standardizing map catalog: %w", err)
	}
	var entries map[string]Info
	if err := json.Unmarshal(std, &entries); err != nil {
		return nil, fmt.Errorf("decoding map catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{names: make([]string, 0, len(entries))}
	for _, info := range entries {
		if info.Name != "" {
			c.names = append(c.names, info.Name)
		}
	}
	if len(c.names) == 0 {
		return nil, ErrEmptyCatalog
	}
	sort.Strings(c.names)
	return c, nil
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Has(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

// Candidates draws up to n distinct random map names, excluding the
// given one. Fewer maps than n means fewer candidates.
func (c *Catalog) Candidates(n int, exclude string) []string {
	pool := make([]string, 0, len(c.names))
	for _, name := range c.names {
		if name != exclude {
			pool = append(pool, name)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
