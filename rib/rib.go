package rib

import (
	"sync"

	bnet "github.com/ccie18643/gbgp/net"
)

// RIB is a per-session adjacency RIB-in. It only tracks which prefixes
// the peer currently announces; path selection happens elsewhere.
type RIB struct {
	mu       sync.Mutex
	prefixes map[bnet.Prefix]struct{}
}

// New creates a new empty RIB
func New() *RIB {
	return &RIB{
		prefixes: make(map[bnet.Prefix]struct{}),
	}
}

// Insert adds prefix pfx to the RIB
func (r *RIB) Insert(pfx bnet.Prefix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[pfx] = struct{}{}
}

// Remove withdraws prefix pfx from the RIB
func (r *RIB) Remove(pfx bnet.Prefix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prefixes, pfx)
}

// Flush drops all routes, used when the session goes down
func (r *RIB) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = make(map[bnet.Prefix]struct{})
}

// Count returns the number of prefixes currently held
func (r *RIB) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prefixes)
}

// Dump returns all prefixes currently held
func (r *RIB) Dump() []bnet.Prefix {
	r.mu.Lock()
	defer r.mu.Unlock()

	pfxs := make([]bnet.Prefix, 0, len(r.prefixes))
	for pfx := range r.prefixes {
		pfxs = append(pfxs, pfx)
	}
	return pfxs
}
