/*
Package catalog provides the license type catalog.

PURPOSE:
  The catalog is the reference data the accounting engine reads: one
  LicenseType per code describing category, renewal cadence, ceiling,
  per-request cap, and eligibility. It is read-only from the engine's
  perspective; this package owns where definitions come from (the
  delivered seed, JSON overrides) and exposes the narrow reader
  interface the rest of the system depends on.

SEE ALSO:
  - loader.go: JSON definitions (HR-editable overrides)
  - seed.go: the delivered catalog
*/
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// CATALOG READER
// =============================================================================

// Reader is the narrow catalog interface the engine consumes.
type Reader interface {
	// Get returns the definition for a code, or engine.ErrNotFound.
	Get(ctx context.Context, code engine.LicenseCode) (engine.LicenseType, error)

	// ListActive returns all active license types, ordered by code.
	ListActive(ctx context.Context) ([]engine.LicenseType, error)

	// ByCode returns the active definitions keyed by code.
	ByCode(ctx context.Context) (map[engine.LicenseCode]engine.LicenseType, error)
}

// =============================================================================
// STATIC CATALOG - In-memory, seed + overrides
// =============================================================================

// Static is an in-memory catalog. The seed is loaded at construction;
// Put installs overrides (e.g. definitions loaded from JSON or a store).
type Static struct {
	mu    sync.RWMutex
	types map[engine.LicenseCode]engine.LicenseType
}

func NewStatic(types ...engine.LicenseType) *Static {
	c := &Static{types: make(map[engine.LicenseCode]engine.LicenseType, len(types))}
	for _, lt := range types {
		c.types[lt.Code] = lt
	}
	return c
}

func (c *Static) Get(_ context.Context, code engine.LicenseCode) (engine.LicenseType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lt, ok := c.types[code]
	if !ok {
		return engine.LicenseType{}, engine.ErrNotFound
	}
	return lt, nil
}

func (c *Static) ListActive(_ context.Context) ([]engine.LicenseType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []engine.LicenseType
	for _, lt := range c.types {
		if lt.Active {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Put installs or replaces a definition.
func (c *Static) Put(lt engine.LicenseType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[lt.Code] = lt
}

// ByCode returns the current definitions keyed by code. Renewal re-pulls
// assignments through this map.
func (c *Static) ByCode(ctx context.Context) (map[engine.LicenseCode]engine.LicenseType, error) {
	active, err := c.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[engine.LicenseCode]engine.LicenseType, len(active))
	for _, lt := range active {
		out[lt.Code] = lt
	}
	return out, nil
}
