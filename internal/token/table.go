package token

import (
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/pfs-io/pfs/internal/wire"
)

// fileTable is the per-file ordered list of tokens plus the ordering
// machinery needed to guarantee that grants on a single file are
// serialized in the order their requests finished carving conflicts
// out of the table, even though the revoke-ACK wait that follows
// happens outside the file's lock.
//
// Mu is a jacobsa/syncutil.InvariantMutex, mirroring fs/inode/file.go's
// Mu field: while syncutil invariant checking is enabled (pfs-metaserver
// enables it from debug.exit-on-invariant-violation), every Lock and
// Unlock re-validates checkInvariants, which enforces I1 (no two tokens
// overlap with either side WRITE).
type fileTable struct {
	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	tokens []Token

	// GUARDED_BY(Mu)
	nextTicket uint64
	// GUARDED_BY(Mu)
	nextToGrant uint64

	// grantOrder signals waiters blocked on their turn to grant, so
	// grants on this file always land in the order their requests
	// finished carving the table.
	grantOrder *sync.Cond
}

func newFileTable() *fileTable {
	ft := &fileTable{}
	ft.Mu = syncutil.NewInvariantMutex(ft.checkInvariants)
	ft.grantOrder = sync.NewCond(&ft.Mu)
	return ft
}

func (ft *fileTable) checkInvariants() {
	for i, a := range ft.tokens {
		for j, b := range ft.tokens {
			if i == j {
				continue
			}
			if a.overlaps(b.Start, b.End) && (a.Mode == wire.ModeWrite || b.Mode == wire.ModeWrite) {
				panic(fmt.Sprintf("token table invariant violated: %+v overlaps %+v with a WRITE side", a, b))
			}
		}
	}
}

// conflicts returns the indices (descending, so callers can delete
// in place) of tokens in ft.tokens that conflict with a request for
// [start,end] in mode m.
func (ft *fileTable) conflicts(m wire.Mode, start, end int64) []int {
	var out []int
	for i := len(ft.tokens) - 1; i >= 0; i-- {
		if ft.tokens[i].conflictsWith(m, start, end) {
			out = append(out, i)
		}
	}
	return out
}

func (ft *fileTable) removeAt(i int) Token {
	t := ft.tokens[i]
	ft.tokens = append(ft.tokens[:i], ft.tokens[i+1:]...)
	return t
}

func (ft *fileTable) insert(t Token) {
	ft.tokens = append(ft.tokens, t)
}

// hasAny reports whether the file currently has any granted token at
// all, used by DeleteFile's BUSY check.
func (ft *fileTable) hasAny() bool {
	return len(ft.tokens) > 0
}

// removeAllForClient drops every token this client holds on the file,
// used by the explicit Close RPC and by client shutdown.
func (ft *fileTable) removeAllForClient(clientID string) {
	kept := ft.tokens[:0]
	for _, t := range ft.tokens {
		if t.ClientID != clientID {
			kept = append(kept, t)
		}
	}
	ft.tokens = kept
}
