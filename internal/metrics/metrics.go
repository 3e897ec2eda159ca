// Package metrics collects the metadata service's ambient counters the
// same shape the client coherence agent collects its own
// (internal/agent.Counters): plain atomic.Int64 fields, snapshotted on
// demand. No external backend (Prometheus, OpenTelemetry) is wired in:
// fault-tolerance and observability infrastructure are out of scope for
// this system, and pulling in a metrics SDK for three counters would be
// scope creep.
package metrics

import "sync/atomic"

// MSCounters are the metadata service's grant/revoke/conflict counts.
type MSCounters struct {
	grants    atomic.Int64
	revokes   atomic.Int64
	conflicts atomic.Int64
}

type MSSnapshot struct {
	Grants    int64
	Revokes   int64
	Conflicts int64
}

func (c *MSCounters) GrantIssued() {
	c.grants.Add(1)
}

func (c *MSCounters) RevokeIssued() {
	c.revokes.Add(1)
}

func (c *MSCounters) ConflictDetected() {
	c.conflicts.Add(1)
}

func (c *MSCounters) Snapshot() MSSnapshot {
	return MSSnapshot{
		Grants:    c.grants.Load(),
		Revokes:   c.revokes.Load(),
		Conflicts: c.conflicts.Load(),
	}
}
