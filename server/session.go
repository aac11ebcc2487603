package server

import (
	"time"

	log "github.com/sirupsen/logrus"
	tomb "gopkg.in/tomb.v2"

	"github.com/ccie18643/gbgp/config"
)

const (
	superviseInterval = time.Second * 10
	collisionInterval = time.Millisecond * 100
)

// Session runs one configured peering. It owns two FSM instances
// sharing the peer configuration: the active one dials out, the
// passive one waits for the broker to hand it an inbound connection.
// A supervisor restarts whichever half went back to Idle, and the
// collision detector arbitrates when both halves progress at once.
type Session struct {
	t        tomb.Tomb
	peer     config.Peer
	registry *Registry
	logger   *log.Entry

	active  *FSM
	passive *FSM
}

func NewSession(peer config.Peer, registry *Registry) *Session {
	return &Session{
		peer:     peer,
		registry: registry,
		logger:   log.WithField("peer", peer.PeerAddress),
		active:   NewFSM(peer, fsmModeActive),
		passive:  NewFSM(peer, fsmModePassive),
	}
}

// Start launches both FSMs, the supervisor and the collision
// detector.
func (s *Session) Start() {
	s.active.Start()
	s.passive.Start()
	s.t.Go(s.supervise)
	s.t.Go(s.detectCollisions)
}

// Stop tears the peering down and waits for all tasks to exit.
func (s *Session) Stop() error {
	s.t.Kill(nil)
	s.registry.Unregister(s.peer.PeerAddress, s.passive)
	s.active.Stop()
	s.passive.Stop()
	return s.t.Wait()
}

// Active returns the dialing FSM.
func (s *Session) Active() *FSM {
	return s.active
}

// Passive returns the listening FSM.
func (s *Session) Passive() *FSM {
	return s.passive
}

// supervise re-arms an FSM that fell back to Idle, unless its
// counterpart already carries the session.
func (s *Session) supervise() error {
	ticker := time.NewTicker(superviseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.superviseOnce()
		case <-s.t.Dying():
			return nil
		}
	}
}

func (s *Session) superviseOnce() {
	if s.peer.ActiveMode && s.active.State() == Idle && s.passive.State() != Established {
		s.active.enqueueEvent(&event{id: AutomaticStart})
	}

	if s.peer.PassiveMode && s.passive.State() == Idle && s.active.State() != Established {
		s.passive.enqueueEvent(&event{id: AutomaticStartWithPassiveTcpEstablishment})
		s.registry.Register(s.peer.PeerAddress, s.passive)
	}
}

// detectCollisions implements RFC 4271 section 6.8: when both halves
// of the peering progress, exactly one of them is stopped.
func (s *Session) detectCollisions() error {
	ticker := time.NewTicker(collisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.resolveCollision()
		case <-s.t.Dying():
			return nil
		}
	}
}

func (s *Session) resolveCollision() {
	activeState := s.active.State()
	passiveState := s.passive.State()

	if activeState == Idle || passiveState == Idle {
		return
	}

	// One connection fully established wins outright.
	if activeState == Established && passiveState != Established {
		s.logger.Info("Session: Active FSM established, stopping passive FSM")
		s.passive.enqueueEvent(&event{id: AutomaticStop})
		return
	}
	if passiveState == Established && activeState != Established {
		s.logger.Info("Session: Passive FSM established, stopping active FSM")
		s.active.enqueueEvent(&event{id: AutomaticStop})
		return
	}

	// Both in OpenConfirm: the connection originated by the speaker
	// with the higher BGP identifier survives.
	if activeState == OpenConfirm && passiveState == OpenConfirm {
		if s.peer.RouterID() > s.active.PeerID() {
			s.logger.Info("Session: Collision, local identifier wins, stopping passive FSM")
			s.passive.enqueueEvent(&event{id: AutomaticStop})
		} else {
			s.logger.Info("Session: Collision, peer identifier wins, stopping active FSM")
			s.active.enqueueEvent(&event{id: AutomaticStop})
		}
	}
}
