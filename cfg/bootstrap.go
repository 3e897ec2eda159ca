package cfg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pfs-io/pfs/internal/pfserrors"
)

// Bootstrap is the parsed form of the cluster bootstrap file: line 1
// is the metadata service address, every following line is one storage
// node address in stripe order.
type Bootstrap struct {
	MetaserverAddr string
	StorageAddrs   []string
}

// ParseBootstrapFile reads a bootstrap file from disk.
func ParseBootstrapFile(path string) (*Bootstrap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfserrors.NotFound(fmt.Errorf("opening bootstrap file %s: %w", path, err))
	}
	defer f.Close()
	return ParseBootstrap(f)
}

// ParseBootstrap implements the line-oriented format itself, taking an
// io.Reader so tests don't need a real file on disk.
func ParseBootstrap(r io.Reader) (*Bootstrap, error) {
	scanner := bufio.NewScanner(r)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading bootstrap file: %w", err)
	}

	if len(lines) < 1 {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("bootstrap file has no metadata service line"))
	}

	return &Bootstrap{
		MetaserverAddr: lines[0],
		StorageAddrs:   append([]string(nil), lines[1:]...),
	}, nil
}
