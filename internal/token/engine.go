package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/pfs-io/pfs/internal/metrics"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/wire"
)

// Revoker sends a REVOKE to an owning client and returns once that
// client has ACKed it (or the context is done). Implemented by
// internal/metaserver against a client's real wire.Stream; tests can
// supply an in-process fake.
type Revoker interface {
	Revoke(ctx context.Context, ownerClientID, fileName string, mode wire.Mode, start, end int64) error
}

// Engine is the metadata service's token table across all files. It
// never itself talks to the network; callers (internal/metaserver) feed
// it requests from the unary and stream surfaces and forward its
// Revoker calls onto the right client's stream.
type Engine struct {
	revoker Revoker

	// mu guards the files map itself (creation of a new per-file table).
	// Locks are always acquired map -> per-file table, the same ordering
	// internal/metadata.Catalog uses for its own map lock, never the
	// reverse.
	mu    sync.RWMutex
	files map[string]*fileTable

	counters *metrics.MSCounters
}

func NewEngine(revoker Revoker) *Engine {
	return &Engine{
		revoker: revoker,
		files:   make(map[string]*fileTable),
	}
}

// AttachCounters wires the engine's grant/revoke/conflict events into
// the ambient metrics counters; callers that don't need Execstat-style
// visibility can leave this unset.
func (e *Engine) AttachCounters(c *metrics.MSCounters) {
	e.counters = c
}

func (e *Engine) tableFor(file string) *fileTable {
	e.mu.RLock()
	ft := e.files[file]
	e.mu.RUnlock()
	if ft != nil {
		return ft
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ft = e.files[file]
	if ft == nil {
		ft = newFileTable()
		e.files[file] = ft
	}
	return ft
}

// Grant is the result of a successful RequestToken call: the exact
// range requested, granted as a single logical token even if it was
// assembled by merging with an overlapping same-client same-mode token.
type Grant struct {
	FileName string
	Mode     wire.Mode
	Start    int64
	End      int64
}

// RequestToken runs the full grant algorithm end to end: find
// conflicts, carve them out of the table, revoke the carved-out
// portions from their owners (waiting for ACKs outside the file's
// lock), then insert and grant.
func (e *Engine) RequestToken(ctx context.Context, clientID, file string, mode wire.Mode, start, end int64) (Grant, error) {
	if start < 0 || end < start {
		return Grant{}, pfserrors.InvalidArgument(fmt.Errorf("illegal range [%d,%d]", start, end))
	}

	ft := e.tableFor(file)

	ft.Mu.Lock()
	ticket := ft.nextTicket
	ft.nextTicket++

	type revokeJob struct {
		owner string
		mode  wire.Mode
		start int64
		end   int64
	}
	var jobs []revokeJob

	for _, i := range ft.conflicts(mode, start, end) {
		if e.counters != nil {
			e.counters.ConflictDetected()
		}
		existing := ft.removeAt(i)

		// Reinsert the untouched prefix/suffix as same-client,
		// same-mode tokens (step 2).
		if existing.Start < start {
			ft.insert(Token{ClientID: existing.ClientID, Mode: existing.Mode, Start: existing.Start, End: start - 1})
		}
		if existing.End > end {
			ft.insert(Token{ClientID: existing.ClientID, Mode: existing.Mode, Start: end + 1, End: existing.End})
		}

		revokedStart, revokedEnd := maxInt64(existing.Start, start), minInt64(existing.End, end)

		// A conflict against the requester's own earlier token (a mode
		// upgrade over a range it already owns) needs no wire
		// round-trip: there is no other owner to ask, so the carve
		// above already applied the client's own implicit agreement.
		if existing.ClientID == clientID {
			continue
		}

		jobs = append(jobs, revokeJob{owner: existing.ClientID, mode: existing.Mode, start: revokedStart, end: revokedEnd})
	}
	ft.Mu.Unlock()

	if e.counters != nil {
		for range jobs {
			e.counters.RevokeIssued()
		}
	}

	// Step 4: wait for every revoke to be ACKed, outside the file lock
	// so unrelated files keep making progress.
	if len(jobs) > 0 {
		var wg sync.WaitGroup
		errs := make([]error, len(jobs))
		for i, j := range jobs {
			wg.Add(1)
			go func(i int, j revokeJob) {
				defer wg.Done()
				errs[i] = e.revoker.Revoke(ctx, j.owner, file, j.mode, j.start, j.end)
			}(i, j)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return Grant{}, pfserrors.Transport(fmt.Errorf("awaiting revoke ack: %w", err))
			}
		}
	}

	ft.Mu.Lock()
	defer ft.Mu.Unlock()

	// Enforce per-file grant ordering: requests are granted in the
	// order they finished carving, not the order their revokes happened
	// to complete.
	for ticket != ft.nextToGrant {
		ft.grantOrder.Wait()
	}

	granted := Token{ClientID: clientID, Mode: mode, Start: start, End: end}
	for _, i := range ft.conflicts(mode, start, end) {
		// Only same-client, same-mode, overlapping tokens can
		// remain here (anything else was carved above); merge them.
		existing := ft.tokens[i]
		if existing.ClientID == clientID && existing.Mode == mode {
			ft.removeAt(i)
			granted.Start = minInt64(granted.Start, existing.Start)
			granted.End = maxInt64(granted.End, existing.End)
		}
	}
	ft.insert(granted)
	ft.nextToGrant++
	ft.grantOrder.Broadcast()

	if e.counters != nil {
		e.counters.GrantIssued()
	}

	return Grant{FileName: file, Mode: mode, Start: start, End: end}, nil
}

// Close implements the explicit CLOSE RPC: drop every token the
// client holds on this one file.
func (e *Engine) Close(clientID, file string) {
	ft := e.tableFor(file)
	ft.Mu.Lock()
	defer ft.Mu.Unlock()
	ft.removeAllForClient(clientID)
}

// Shutdown handles a client going away (connection drop or explicit
// Finish): drop every token the client holds across all files.
func (e *Engine) Shutdown(clientID string) {
	e.mu.RLock()
	tables := make([]*fileTable, 0, len(e.files))
	for _, ft := range e.files {
		tables = append(tables, ft)
	}
	e.mu.RUnlock()

	for _, ft := range tables {
		ft.Mu.Lock()
		ft.removeAllForClient(clientID)
		ft.Mu.Unlock()
	}
}

// HasTokens reports whether any token at all exists for file, used by
// DeleteFile's BUSY check.
func (e *Engine) HasTokens(file string) bool {
	ft := e.tableFor(file)
	ft.Mu.Lock()
	defer ft.Mu.Unlock()
	return ft.hasAny()
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
