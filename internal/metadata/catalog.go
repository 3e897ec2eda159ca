// Package metadata holds the metadata service's authoritative file
// catalog: name -> size/timestamps/stripe width/recipe, plus the
// CreateFile/FetchMetadata/UpdateMetadata/DeleteFile operations.
package metadata

import (
	"fmt"
	"sync"
	"time"

	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/pfserrors"
)

// FileMetadata is the catalog entry for one file. The stripe recipe is
// not stored separately: it is the deterministic
// function of StripeWidth computed by NodeForBlock, derived from name
// only in the sense that every client computing it for the same file
// sees the same StripeWidth from this same catalog entry.
type FileMetadata struct {
	Name        string
	Size        int64
	Ctime       time.Time
	Mtime       time.Time
	StripeWidth int
}

// NodeForBlock returns the storage node index that owns block b: block
// b lives on storage node b mod stripe_width.
func (m FileMetadata) NodeForBlock(b int64) int {
	return int(b % int64(m.StripeWidth))
}

// Catalog is the in-memory file catalog. A single sync.RWMutex guards
// the map (shared for fetch, exclusive for create/update/delete); it is
// always acquired before any per-file token table lock, never after, to
// preclude deadlock (internal/token's Engine mirrors this ordering
// independently since it owns a different map).
type Catalog struct {
	clock clock.Clock

	// maxStripeWidth is N, the configured number of storage nodes;
	// CreateFile rejects any stripe_width outside [1, maxStripeWidth].
	maxStripeWidth int

	mu    sync.RWMutex
	files map[string]*FileMetadata
}

func NewCatalog(c clock.Clock, maxStripeWidth int) *Catalog {
	return &Catalog{
		clock:          c,
		maxStripeWidth: maxStripeWidth,
		files:          make(map[string]*FileMetadata),
	}
}

// CreateFile fails if name already exists or stripe_width is out of
// [1, N].
func (c *Catalog) CreateFile(name string, stripeWidth int) (*FileMetadata, error) {
	if name == "" {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("empty file name"))
	}
	if stripeWidth < 1 || stripeWidth > c.maxStripeWidth {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("stripe_width %d out of range [1,%d]", stripeWidth, c.maxStripeWidth))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.files[name]; ok {
		return nil, pfserrors.AlreadyExists(fmt.Errorf("file %q already exists", name))
	}

	now := c.clock.Now()
	fm := &FileMetadata{
		Name:        name,
		Size:        0,
		Ctime:       now,
		Mtime:       now,
		StripeWidth: stripeWidth,
	}
	c.files[name] = fm

	// Return a copy so callers can't mutate catalog state directly.
	cp := *fm
	return &cp, nil
}

// Fetch returns a snapshot of the metadata for name. Readers may run
// concurrently.
func (c *Catalog) Fetch(name string) (*FileMetadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fm, ok := c.files[name]
	if !ok {
		return nil, pfserrors.NotFound(fmt.Errorf("file %q not found", name))
	}

	cp := *fm
	return &cp, nil
}

// Update is UpdateMetadata: size only grows (max with the reported
// size), mtime is overwritten only when positive. This is the only
// path by which size grows.
func (c *Catalog) Update(name string, reportedSize int64, mtime time.Time) (*FileMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fm, ok := c.files[name]
	if !ok {
		return nil, pfserrors.NotFound(fmt.Errorf("file %q not found", name))
	}

	if reportedSize > fm.Size {
		fm.Size = reportedSize
	}
	if !mtime.IsZero() {
		fm.Mtime = mtime
	}

	cp := *fm
	return &cp, nil
}

// Delete removes name from the catalog, unless hasTokens reports a live
// token for it, in which case it fails BUSY.
func (c *Catalog) Delete(name string, hasTokens func(string) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.files[name]; !ok {
		return pfserrors.NotFound(fmt.Errorf("file %q not found", name))
	}
	if hasTokens(name) {
		return pfserrors.Busy(fmt.Errorf("file %q has live tokens", name))
	}

	delete(c.files, name)
	return nil
}
