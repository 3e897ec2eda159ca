// Package agent implements the client coherence agent: the component
// that sits between an application and the metadata/storage services,
// holding the local mirror of this client's tokens (internal/tokenset),
// the block cache (internal/blockcache), and the state machines for
// read, write, close, and revoke.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pfs-io/pfs/internal/blockcache"
	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/storage"
	"github.com/pfs-io/pfs/internal/tokenset"
	"github.com/pfs-io/pfs/internal/wire"
)

// CA is the client coherence agent for one client process. Exactly one
// mutex (mu) guards the local token set and the block cache together,
// so a revoke arriving on the stream's reader goroutine can never
// observe (or leave behind) a state where one reflects the new token
// boundary and the other still reflects the old one.
type CA struct {
	ClientID string

	clock     clock.Clock
	blockSize int64

	meta   MetaClient
	tokens *TokenClient
	router *storage.Router

	mu    sync.Mutex
	set   *tokenset.Set
	cache *blockcache.Cache

	fds      *fdTable
	counters *Counters

	stripeMu     sync.Mutex
	stripeWidths map[string]int
}

func NewCA(clientID string, clk clock.Clock, blockSize int64, meta MetaClient, router *storage.Router, cacheBlocks int) *CA {
	ca := &CA{
		ClientID:     clientID,
		clock:        clk,
		blockSize:    blockSize,
		meta:         meta,
		router:       router,
		set:          tokenset.New(),
		cache:        blockcache.New(cacheBlocks),
		fds:          newFdTable(),
		counters:     &Counters{},
		stripeWidths: make(map[string]int),
	}
	return ca
}

// AttachStream starts the token stream client against an established
// connection to the metadata service and begins servicing incoming
// REVOKEs. Callers must keep the returned error channel drained (or
// simply let it run until Finish tears the agent down).
func (ca *CA) AttachStream(ctx context.Context, stream *wire.Stream) <-chan error {
	ca.tokens = NewTokenClient(ca.ClientID, stream, ca.handleRevoke)
	errc := make(chan error, 1)
	go func() { errc <- ca.tokens.Run(ctx) }()
	return errc
}

// Create asks the metadata service to register a new file with the
// given stripe width.
func (ca *CA) Create(name string, stripeWidth int) error {
	fm, err := ca.meta.CreateFile(name, stripeWidth)
	if err != nil {
		return err
	}
	ca.cacheStripeWidth(name, fm.StripeWidth)
	return nil
}

// Open returns a file descriptor for name, opened under mode (READ or
// RW). Opening does not itself acquire any token; the first Read or
// Write on the fd does.
func (ca *CA) Open(name string, mode OpenMode) (int, error) {
	fm, err := ca.meta.Fetch(name)
	if err != nil {
		return 0, err
	}
	ca.cacheStripeWidth(name, fm.StripeWidth)
	return ca.fds.open(name, mode, fm.Size), nil
}

// Fstat returns the metadata service's current view of a file's size
// and timestamps, refreshing the fd's tracked known_size to match.
func (ca *CA) Fstat(fd int) (size int64, mtime time.Time, err error) {
	h, ok := ca.fds.lookup(fd)
	if !ok {
		return 0, time.Time{}, pfserrors.InvalidArgument(fmt.Errorf("fd %d not open", fd))
	}
	fm, err := ca.meta.Fetch(h.name)
	if err != nil {
		return 0, time.Time{}, err
	}
	ca.fds.setKnownSize(fd, fm.Size)
	return fm.Size, fm.Mtime, nil
}

// Delete removes a file, refusing (BUSY) if this client still has it
// open, matching the metadata service's own tokens-outstanding check
// for other clients.
func (ca *CA) Delete(name string) error {
	if n := ca.fds.openFdsForFile(name); n > 0 {
		return pfserrors.Busy(fmt.Errorf("file %q is open on %d descriptor(s)", name, n))
	}
	return ca.meta.Delete(name)
}

// Execstat returns a snapshot of this agent's counters.
func (ca *CA) Execstat() Execstat {
	return ca.counters.Snapshot()
}

// writeback returns the function the block cache calls to flush one
// dirty block. It is called while ca.mu (and the cache's own lock) is
// held, and an eviction it's asked to flush can belong to a different
// file than whichever one is currently being written (the cache is one
// LRU shared across every file this client has open), so it resolves
// the target file's stripe width from the in-memory cache rather than
// asking the metadata service, keeping this closure free of network
// I/O.
func (ca *CA) writeback() blockcache.WritebackFunc {
	return func(file string, blockIndex int64, data []byte) error {
		node := ca.nodeForWidth(ca.cachedStripeWidth(file), blockIndex)
		if err := node.WriteBlock(context.Background(), file, blockIndex*ca.blockSize, data); err != nil {
			return err
		}
		ca.counters.writebacks.Add(1)
		return nil
	}
}

func (ca *CA) nodeForWidth(stripeWidth int, blockIndex int64) storage.Node {
	return ca.router.NodeForBlock(stripeWidth, blockIndex)
}

// cacheStripeWidth records a file's configured stripe width, fetched
// once by Create or Open, so later cache operations never need to ask
// the metadata service for it again.
func (ca *CA) cacheStripeWidth(file string, width int) {
	if width <= 0 {
		return
	}
	ca.stripeMu.Lock()
	ca.stripeWidths[file] = width
	ca.stripeMu.Unlock()
}

// cachedStripeWidth returns a file's stripe width as cached by Create
// or Open, falling back to the router's full node count (the width of
// a file this client has never itself opened, which only happens for
// files it doesn't hold a descriptor on).
func (ca *CA) cachedStripeWidth(file string) int {
	ca.stripeMu.Lock()
	defer ca.stripeMu.Unlock()
	if w, ok := ca.stripeWidths[file]; ok {
		return w
	}
	return ca.router.NodeCount()
}
