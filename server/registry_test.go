package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryMatchConsumesEntry(t *testing.T) {
	r := NewRegistry()
	fsm := NewFSM(testPeerConfig(), fsmModePassive)

	r.Register("192.168.9.201", fsm)

	assert.Equal(t, fsm, r.Match("192.168.9.201"))

	// The entry is consumed on match.
	assert.Nil(t, r.Match("192.168.9.201"))
}

func TestRegistryUnknownPeer(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Match("192.168.9.202"))
}

func TestRegistryReregister(t *testing.T) {
	r := NewRegistry()
	a := NewFSM(testPeerConfig(), fsmModePassive)
	b := NewFSM(testPeerConfig(), fsmModePassive)

	r.Register("192.168.9.201", a)
	r.Register("192.168.9.201", b)

	// Last registration wins.
	assert.Equal(t, b, r.Match("192.168.9.201"))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	a := NewFSM(testPeerConfig(), fsmModePassive)
	b := NewFSM(testPeerConfig(), fsmModePassive)

	r.Register("192.168.9.201", a)
	r.Unregister("192.168.9.201", b) // Someone else's entry stays
	assert.Equal(t, a, r.Match("192.168.9.201"))

	r.Register("192.168.9.201", a)
	r.Unregister("192.168.9.201", a)
	assert.Nil(t, r.Match("192.168.9.201"))
}
