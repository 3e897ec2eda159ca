// Package tokenset is the client coherence agent's mirror of the byte
// ranges it currently owns, keyed by file name. It implements the same
// carve-around-a-range operation the metadata service performs, so a
// REVOKE can be applied locally the same way the server applied it
// when it decided to send the REVOKE.
package tokenset

import (
	"sort"
	"sync"

	"github.com/pfs-io/pfs/internal/wire"
)

// Entry is one byte-range lease the client currently believes it holds.
type Entry struct {
	Mode  wire.Mode
	Start int64
	End   int64
}

func (e Entry) overlaps(start, end int64) bool {
	return e.Start <= end && start <= e.End
}

// Set is the client-local token set across all open files. It has no
// notion of other clients: it only ever holds this client's own leases.
type Set struct {
	mu     sync.Mutex
	byFile map[string][]Entry
}

func New() *Set {
	return &Set{byFile: make(map[string][]Entry)}
}

// Covers reports whether the set already has coverage for [start,end]
// on file in at least mode (a WRITE entry covers a READ requirement;
// a READ entry never covers a WRITE requirement).
func (s *Set) Covers(file string, mode wire.Mode, start, end int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]Entry(nil), s.byFile[file]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Start < entries[j].Start })

	cursor := start
	for _, e := range entries {
		if e.End < cursor {
			continue
		}
		if e.Start > cursor {
			return false
		}
		if mode == wire.ModeWrite && e.Mode != wire.ModeWrite {
			return false
		}
		if e.End+1 > cursor {
			cursor = e.End + 1
		}
		if cursor > end {
			return true
		}
	}
	return cursor > end
}

// Add records a newly granted token. Correctness never depends on
// coalescing adjacent same-mode entries, so Add simply appends.
func (s *Set) Add(file string, mode wire.Mode, start, end int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byFile[file] = append(s.byFile[file], Entry{Mode: mode, Start: start, End: end})
}

// Split carves [start,end] out of every entry on file that intersects
// it, keeping the non-overlapping prefix/suffix of each: the client
// side of the same algorithm the server ran to decide this revoke. It
// returns the entries that were touched, for callers that want to log
// or count them.
func (s *Set) Split(file string, start, end int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byFile[file]
	kept := entries[:0]
	var touched []Entry

	for _, e := range entries {
		if !e.overlaps(start, end) {
			kept = append(kept, e)
			continue
		}
		touched = append(touched, e)
		if e.Start < start {
			kept = append(kept, Entry{Mode: e.Mode, Start: e.Start, End: start - 1})
		}
		if e.End > end {
			kept = append(kept, Entry{Mode: e.Mode, Start: end + 1, End: e.End})
		}
	}

	s.byFile[file] = kept
	return touched
}

// RemoveFile drops every entry for file, used on Close.
func (s *Set) RemoveFile(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byFile, file)
}

// RemoveAll drops every entry across every file, used on client
// shutdown.
func (s *Set) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byFile = make(map[string][]Entry)
}
