package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"net"
	"sync"
)

// Stream is a length-prefixed, gob-encoded duplex channel for
// TokenMessage values. One Stream models the single long-lived
// bidirectional token stream a client keeps open with the metadata
// service until it shuts down.
//
// Reads and writes may proceed concurrently from different goroutines.
// Send serializes its callers; Recv has no lock of its own and expects a
// single reading goroutine.
type Stream struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex
}

// NewStream wraps an established connection.
func NewStream(conn net.Conn) *Stream {
	return &Stream{
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

// Send encodes and writes a single message, framed with a 4-byte
// big-endian length prefix. Safe for concurrent use.
func (s *Stream) Send(m *TokenMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encoding token message: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))

	if _, err := s.conn.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("writing length prefix: %w", err)
	}
	if _, err := s.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}

	return nil
}

// Recv blocks until the next message arrives, or returns an error
// (io.EOF on a clean close, which callers should treat as an implicit
// client shutdown).
func (s *Stream) Recv() (*TokenMessage, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(s.r, lenPrefix[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return nil, fmt.Errorf("reading message body: %w", err)
	}

	var m TokenMessage
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding token message: %w", err)
	}

	return &m, nil
}

// Close tears down the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}
