package wire

import "net"

// NewPipe returns two connected Streams backed by an in-memory
// net.Pipe, letting MS/CA integration tests exercise the real framing
// and goroutine structure without binding a TCP socket.
func NewPipe() (a *Stream, b *Stream) {
	c1, c2 := net.Pipe()
	return NewStream(c1), NewStream(c2)
}
