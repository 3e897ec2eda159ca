package agent

import "sync/atomic"

// Counters are the atomic counters the agent exposes through Execstat,
// one atomic.Int64 per counted event so Read, Write, and revoke
// handling never contend with a caller snapshotting them.
type Counters struct {
	readHits        atomic.Int64
	readMisses      atomic.Int64
	writeHits       atomic.Int64
	evictions       atomic.Int64
	writebacks      atomic.Int64
	invalidations   atomic.Int64
	closeWritebacks atomic.Int64
	closeEvictions  atomic.Int64
}

// Execstat is a point-in-time snapshot of a Counters, returned by
// the client API's Execstat call.
type Execstat struct {
	ReadHits        int64
	ReadMisses      int64
	WriteHits       int64
	Evictions       int64
	Writebacks      int64
	Invalidations   int64
	CloseWritebacks int64
	CloseEvictions  int64
}

func (c *Counters) Snapshot() Execstat {
	return Execstat{
		ReadHits:        c.readHits.Load(),
		ReadMisses:      c.readMisses.Load(),
		WriteHits:       c.writeHits.Load(),
		Evictions:       c.evictions.Load(),
		Writebacks:      c.writebacks.Load(),
		Invalidations:   c.invalidations.Load(),
		CloseWritebacks: c.closeWritebacks.Load(),
		CloseEvictions:  c.closeEvictions.Load(),
	}
}
