// Package storagenode is the reference implementation of a storage
// node: an opaque block store behind the Node interface of
// internal/storage. It keeps each file as a single in-memory byte
// slice; a production node's on-disk format is deliberately out of
// scope here.
package storagenode

import (
	"context"
	"fmt"
	"sync"

	"github.com/pfs-io/pfs/internal/pfserrors"
)

// Store is one storage node's data. A write past the current end of
// file zero-fills the gap up to the write offset, the same semantics
// a sparse file gets from a plain seek-and-write.
type Store struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewStore() *Store {
	return &Store{files: make(map[string][]byte)}
}

func (s *Store) ReadBlock(ctx context.Context, file string, offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("negative offset/size"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[file]
	if !ok || offset >= int64(len(data)) {
		return nil, nil
	}

	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}

	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (s *Store) WriteBlock(ctx context.Context, file string, offset int64, data []byte) error {
	if offset < 0 {
		return pfserrors.InvalidArgument(fmt.Errorf("negative offset"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.files[file]
	needed := offset + int64(len(data))
	if int64(len(cur)) < needed {
		grown := make([]byte, needed)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], data)
	s.files[file] = cur

	return nil
}

func (s *Store) DeleteFile(ctx context.Context, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, file)
	return nil
}
