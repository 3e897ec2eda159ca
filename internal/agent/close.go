package agent

import (
	"context"
	"fmt"

	"github.com/pfs-io/pfs/internal/pfserrors"
)

// Close flushes every dirty block for this file, tells the metadata
// service to drop this client's tokens on it, then drops the local
// mirror and frees the descriptor.
//
// A file left dangling by a crashed client (no explicit Close) is
// still covered: the metadata service drops a client's tokens on
// stream disconnect regardless of whether Close was ever called
// (internal/metaserver.Server.HandleStream's deferred cleanup).
func (ca *CA) Close(ctx context.Context, fd int) error {
	h, ok := ca.fds.close(fd)
	if !ok {
		return pfserrors.InvalidArgument(fmt.Errorf("fd %d not open", fd))
	}

	ca.mu.Lock()
	writebacks, invalidations, err := ca.cache.InvalidateFile(h.name, ca.writeback())
	ca.mu.Unlock()
	if err != nil {
		return err
	}
	ca.counters.closeWritebacks.Add(int64(writebacks))
	ca.counters.closeEvictions.Add(int64(invalidations))

	if err := ca.tokens.RequestClose(ctx, h.name); err != nil {
		return err
	}

	ca.mu.Lock()
	ca.set.RemoveFile(h.name)
	ca.mu.Unlock()

	return nil
}

// Finish flushes and releases everything this client holds across
// every open file, then clears the local token mirror. It does not close
// the token stream; callers close the underlying connections afterward.
func (ca *CA) Finish(ctx context.Context) error {
	for _, fd := range ca.fds.openFds() {
		if err := ca.Close(ctx, fd); err != nil {
			return err
		}
	}

	ca.mu.Lock()
	ca.set.RemoveAll()
	ca.mu.Unlock()
	return nil
}
