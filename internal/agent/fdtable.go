package agent

import "sync"

// OpenMode is the access mode a file descriptor was opened under.
type OpenMode int

const (
	OpenModeRead OpenMode = 1
	OpenModeRW   OpenMode = 2
)

// handle is what a file descriptor refers to while a file is open:
// the client open-file table's (file_name, open_mode, known_size)
// triple. knownSize is refreshed on Open and on Fstat; it is not kept
// current on every Write, so a reader sharing the same fd across a
// write needs an Fstat in between to see the new size.
type handle struct {
	name      string
	mode      OpenMode
	knownSize int64
}

// fdTable is the client's recyclable file-descriptor allocator. A
// monotonic never-reused counter exhausts a 32-bit fd space under a
// long-running client that opens and closes many files; this allocator
// recycles numbers on Close so a client doing open/close in a loop
// holds a bounded fd range.
type fdTable struct {
	mu     sync.Mutex
	byFd   map[int]*handle
	free   []int
	nextFd int
}

func newFdTable() *fdTable {
	return &fdTable{byFd: make(map[int]*handle)}
}

func (t *fdTable) open(name string, mode OpenMode, knownSize int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fd int
	if n := len(t.free); n > 0 {
		fd = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		fd = t.nextFd
		t.nextFd++
	}
	t.byFd[fd] = &handle{name: name, mode: mode, knownSize: knownSize}
	return fd
}

// lookup returns a snapshot of fd's handle. It returns a copy rather
// than the stored pointer so a concurrent setKnownSize (from another
// goroutine's Fstat) never races with a caller reading the fields it
// already fetched.
func (t *fdTable) lookup(fd int) (handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.byFd[fd]
	if !ok {
		return handle{}, false
	}
	return *h, true
}

// setKnownSize updates the tracked size for an already-open fd, called
// after every Fstat refresh from the metadata service (open seeds the
// initial size itself).
func (t *fdTable) setKnownSize(fd int, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.byFd[fd]; ok {
		h.knownSize = size
	}
}

func (t *fdTable) close(fd int) (handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.byFd[fd]
	if !ok {
		return handle{}, false
	}
	delete(t.byFd, fd)
	t.free = append(t.free, fd)
	return *h, true
}

// openFds returns every currently open descriptor number.
func (t *fdTable) openFds() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fds := make([]int, 0, len(t.byFd))
	for fd := range t.byFd {
		fds = append(fds, fd)
	}
	return fds
}

// openFdsForFile reports every fd currently open against name, used by
// Delete's local BUSY pre-check (the authoritative check is still the
// metadata service's).
func (t *fdTable) openFdsForFile(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, h := range t.byFd {
		if h.name == name {
			n++
		}
	}
	return n
}
