package agent

import (
	"context"
	"fmt"

	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/wire"
)

// Read ensures READ coverage for the requested range (acquiring a
// token if necessary), then serves every block in range from the
// cache, pulling misses from storage. length is clamped against the
// fd's tracked known_size: a read starting at or past EOF returns zero
// bytes, and a read straddling EOF is truncated to what's available.
func (ca *CA) Read(ctx context.Context, fd int, offset int64, length int) ([]byte, error) {
	h, ok := ca.fds.lookup(fd)
	if !ok {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("fd %d not open", fd))
	}
	if offset < 0 || length < 0 {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("offset and length must be non-negative, got offset=%d length=%d", offset, length))
	}

	if length == 0 || offset >= h.knownSize {
		return []byte{}, nil
	}
	if offset+int64(length) > h.knownSize {
		length = int(h.knownSize - offset)
	}

	start := offset
	end := offset + int64(length) - 1

	if err := ca.ensureCoverage(ctx, h.name, wire.ModeRead, start, end); err != nil {
		return nil, err
	}

	ca.mu.Lock()
	defer ca.mu.Unlock()

	out := make([]byte, 0, length)
	firstIdx, lastIdx := ca.blockIndexRange(start, end)
	for idx := firstIdx; idx <= lastIdx; idx++ {
		_, hit := ca.cache.Lookup(h.name, idx)
		data, err := ca.fetchBlockLocked(ctx, h.name, idx, wire.ModeRead)
		if err != nil {
			return nil, err
		}
		if hit {
			ca.counters.readHits.Add(1)
		} else {
			ca.counters.readMisses.Add(1)
		}

		blockStart := idx * ca.blockSize
		from := int64(0)
		if start > blockStart {
			from = start - blockStart
		}
		to := ca.blockSize
		if end < blockStart+ca.blockSize-1 {
			to = end - blockStart + 1
		}
		out = append(out, data[from:to]...)
	}

	return out, nil
}

// ensureCoverage acquires a token over [start,end] in mode if the local
// token set doesn't already cover it. It is called without ca.mu held:
// the round trip to the metadata service must not block the goroutine
// that services incoming REVOKEs for this same client.
func (ca *CA) ensureCoverage(ctx context.Context, file string, mode wire.Mode, start, end int64) error {
	ca.mu.Lock()
	covered := ca.set.Covers(file, mode, start, end)
	ca.mu.Unlock()
	if covered {
		return nil
	}

	grant, err := ca.tokens.RequestToken(ctx, file, mode, start, end)
	if err != nil {
		return err
	}

	ca.mu.Lock()
	ca.set.Add(file, grant.Mode, grant.Start, grant.End)
	ca.mu.Unlock()
	return nil
}
