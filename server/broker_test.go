package server

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ccie18643/gbgp/packet"
)

func startTestBroker(t *testing.T) (*Broker, *Registry, string) {
	t.Helper()

	registry := NewRegistry()
	broker := NewBroker(registry)
	if err := broker.ListenAndServe("127.0.0.1:0"); err != nil {
		t.Fatalf("unable to start broker: %v", err)
	}
	t.Cleanup(func() { broker.Stop() })

	return broker, registry, broker.listener.Addr().String()
}

// An inbound connection from a registered peer is handed to the
// passive FSM, which sends its OPEN and moves to OpenSent.
func TestBrokerDispatchesToPassiveFSM(t *testing.T) {
	_, registry, addr := startTestBroker(t)

	peer := testPeerConfig()
	peer.PeerAddress = "127.0.0.1"

	fsm := NewFSM(peer, fsmModePassive)
	fsm.Start()
	defer fsm.Stop()

	fsm.ManualStart()
	if !waitForState(t, fsm, Active) {
		t.FailNow()
	}

	registry.Register("127.0.0.1", fsm)

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("unable to dial broker: %v", err)
	}
	defer c.Close()

	wire := readMsg(t, c)
	assert.Equal(t, uint8(packet.OpenMsg), wire[18])
	if !waitForState(t, fsm, OpenSent) {
		t.FailNow()
	}

	// The registry entry was consumed.
	assert.Nil(t, registry.Match("127.0.0.1"))
}

// A connection from a peer nobody listens for is closed.
func TestBrokerClosesUnknownPeer(t *testing.T) {
	_, _, addr := startTestBroker(t)

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("unable to dial broker: %v", err)
	}
	defer c.Close()

	c.SetReadDeadline(time.Now().Add(time.Second * 5))
	_, err = c.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)
}
