// Package token implements the metadata service's token table: the
// per-file ordered list of granted byte-range tokens, and the
// find-conflicts / carve / revoke / wait / insert algorithm that
// services every token request.
package token

import "github.com/pfs-io/pfs/internal/wire"

// Token is a server-granted lease on [Start, End] (inclusive) of a
// file, in Mode, held by ClientID.
type Token struct {
	ClientID string
	Mode     wire.Mode
	Start    int64
	End      int64
}

// overlaps reports whether t's range intersects [start, end].
func (t Token) overlaps(start, end int64) bool {
	return t.Start <= end && start <= t.End
}

// conflictsWith reports whether a request for [start,end] in mode m
// conflicts with t: any intersecting range where either side is a
// WRITE.
func (t Token) conflictsWith(m wire.Mode, start, end int64) bool {
	if !t.overlaps(start, end) {
		return false
	}
	return t.Mode == wire.ModeWrite || m == wire.ModeWrite
}
