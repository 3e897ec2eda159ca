package agent

import (
	"context"
	"fmt"

	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/wire"
)

// Write applies a write under the cache-authoritative model: the write
// lands in cached blocks and the metadata service's size/mtime are
// updated immediately, but the bytes themselves reach their storage
// node only on eviction, revoke, or close.
func (ca *CA) Write(ctx context.Context, fd int, offset int64, data []byte) error {
	h, ok := ca.fds.lookup(fd)
	if !ok {
		return pfserrors.InvalidArgument(fmt.Errorf("fd %d not open", fd))
	}
	if h.mode != OpenModeRW {
		return pfserrors.PermissionDenied(fmt.Errorf("fd %d not open in write mode", fd))
	}
	if len(data) == 0 {
		return pfserrors.InvalidArgument(fmt.Errorf("write with no data"))
	}

	start := offset
	end := offset + int64(len(data)) - 1

	if err := ca.ensureCoverage(ctx, h.name, wire.ModeWrite, start, end); err != nil {
		return err
	}

	ca.mu.Lock()
	firstIdx, lastIdx := ca.blockIndexRange(start, end)
	for idx := firstIdx; idx <= lastIdx; idx++ {
		blockStart := idx * ca.blockSize
		from := int64(0)
		if start > blockStart {
			from = start - blockStart
		}
		to := ca.blockSize
		if end < blockStart+ca.blockSize-1 {
			to = end - blockStart + 1
		}

		_, wasCached := ca.cache.Lookup(h.name, idx)

		// A block only partially covered by this write needs its
		// existing contents for the untouched portion; a fully covered
		// block can skip the read.
		var block []byte
		if from != 0 || to != ca.blockSize {
			existing, err := ca.fetchBlockLocked(ctx, h.name, idx, wire.ModeWrite)
			if err != nil {
				ca.mu.Unlock()
				return err
			}
			block = append([]byte(nil), existing...)
		} else {
			block = make([]byte, ca.blockSize)
		}

		srcOffset := blockStart + from - offset
		copy(block[from:to], data[srcOffset:srcOffset+(to-from)])

		evicted, err := ca.cache.Admit(h.name, idx, block, wire.ModeWrite, ca.writeback())
		if err != nil {
			ca.mu.Unlock()
			return err
		}
		if evicted {
			ca.counters.evictions.Add(1)
		}
		ca.cache.MarkDirty(h.name, idx)

		// Only a block that was already resident counts as a write hit;
		// a first-touch admission (whether freshly fetched above or
		// newly zero-filled for a fully covered block) does not.
		if wasCached {
			ca.counters.writeHits.Add(1)
		}
	}
	ca.mu.Unlock()

	_, err := ca.meta.Update(h.name, end+1, ca.clock.Now())
	return err
}
