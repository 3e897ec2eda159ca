package agent

import "github.com/pfs-io/pfs/internal/wire"

// handleRevoke applies an incoming REVOKE to local state: flush any
// dirty blocks in the revoked range, drop them from the cache, and
// carve the range out of the local token mirror. It runs
// on the token stream's single reader goroutine, serialized against
// every other revoke by construction and against Read/Write by ca.mu.
func (ca *CA) handleRevoke(file string, mode wire.Mode, start, end int64) error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	// ca.writeback already bumps the writebacks counter per flushed
	// block; InvalidateRange's own count only needs to drive
	// invalidations here.
	_, invalidations, err := ca.cache.InvalidateRange(file, start, end, ca.blockSize, ca.writeback())
	if err != nil {
		return err
	}
	ca.counters.invalidations.Add(int64(invalidations))

	ca.set.Split(file, start, end)
	return nil
}
