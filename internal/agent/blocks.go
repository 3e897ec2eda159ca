package agent

import (
	"context"

	"github.com/pfs-io/pfs/internal/wire"
)

func (ca *CA) blockIndexRange(start, end int64) (first, last int64) {
	return start / ca.blockSize, end / ca.blockSize
}

// fetchBlockLocked loads block idx of file into the cache if it isn't
// already there, reading it from its storage node. Callers must hold
// ca.mu.
func (ca *CA) fetchBlockLocked(ctx context.Context, file string, idx int64, mode wire.Mode) ([]byte, error) {
	if b, ok := ca.cache.Lookup(file, idx); ok {
		return b.Data, nil
	}

	node := ca.nodeForWidth(ca.cachedStripeWidth(file), idx)
	data, err := node.ReadBlock(ctx, file, idx*ca.blockSize, int(ca.blockSize))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < ca.blockSize {
		padded := make([]byte, ca.blockSize)
		copy(padded, data)
		data = padded
	}

	evicted, err := ca.cache.Admit(file, idx, data, mode, ca.writeback())
	if err != nil {
		return nil, err
	}
	if evicted {
		ca.counters.evictions.Add(1)
	}
	return data, nil
}
