package server

import "sync"

// Registry maps a peer IP to the passive FSM awaiting an inbound
// connection from it. Sessions insert, the broker consumes: a lookup
// removes the entry atomically so one accepted socket can only ever
// reach one FSM.
type Registry struct {
	mu        sync.Mutex
	listeners map[string]*FSM
}

func NewRegistry() *Registry {
	return &Registry{
		listeners: make(map[string]*FSM),
	}
}

// Register announces fsm as the passive FSM for peerIP.
func (r *Registry) Register(peerIP string, fsm *FSM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[peerIP] = fsm
}

// Match removes and returns the passive FSM for peerIP, or nil when
// no FSM is waiting for it.
func (r *Registry) Match(peerIP string) *FSM {
	r.mu.Lock()
	defer r.mu.Unlock()

	fsm, ok := r.listeners[peerIP]
	if !ok {
		return nil
	}
	delete(r.listeners, peerIP)
	return fsm
}

// Unregister drops the entry for peerIP if it still points at fsm.
func (r *Registry) Unregister(peerIP string, fsm *FSM) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listeners[peerIP] == fsm {
		delete(r.listeners, peerIP)
	}
}
