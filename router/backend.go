package router

import "sync/atomic"

// Backend is a candidate server. Name, Region and Address never change after
// construction; only the active request counter is mutable, and only through
// Begin and Done.
type Backend struct {
	Name    string
	Region  string
	Address string // base URL for probe telemetry; empty for simulated pools

	active atomic.Int64
}

// NewBackend creates a Backend with no requests in flight.
func NewBackend(name, region, address string) *Backend {
	return &Backend{Name: name, Region: region, Address: address}
}

// Begin marks one request as started on this backend.
func (b *Backend) Begin() {
	b.active.Add(1)
}

// Done marks one request as finished. The counter never drops below zero.
func (b *Backend) Done() {
	for {
		cur := b.active.Load()
		if cur <= 0 {
			return
		}
		if b.active.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// ActiveRequests returns the number of requests currently in flight.
func (b *Backend) ActiveRequests() int {
	return int(b.active.Load())
}
