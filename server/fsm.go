package server

import (
	"context"
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	tomb "gopkg.in/tomb.v2"

	"github.com/ccie18643/gbgp/config"
	"github.com/ccie18643/gbgp/packet"
	"github.com/ccie18643/gbgp/rib"
)

// FSM states per RFC 4271 section 8.2.2.
const (
	Idle        = 1
	Connect     = 2
	Active      = 3
	OpenSent    = 4
	OpenConfirm = 5
	Established = 6
)

var stateName = map[int]string{
	Idle:        "Idle",
	Connect:     "Connect",
	Active:      "Active",
	OpenSent:    "OpenSent",
	OpenConfirm: "OpenConfirm",
	Established: "Established",
}

const (
	fsmModeActive  = "active"
	fsmModePassive = "passive"
)

// FSM is one per-connection BGP state machine. A Session runs two of
// them per peer, one for the outbound and one for the inbound
// connection attempt. All state transitions happen on the dispatch
// task consuming the event queue; the timers, the connector and the
// message receiver only ever enqueue events.
type FSM struct {
	t    tomb.Tomb
	peer config.Peer
	mode string

	routerID uint32
	logger   *log.Entry
	queue    *eventQueue

	state atomic.Int32

	conn        net.Conn
	established atomic.Bool
	dialCancel  context.CancelFunc
	peerPort    uint16

	connectRetryCounter int
	connectRetryTime    int
	connectRetryTimer   *countdown
	holdTimer           *countdown
	keepaliveTimer      *countdown

	localHoldTime int
	holdTime      int
	keepaliveTime int

	peerID atomic.Uint32

	passiveTcpEstablishment         bool
	allowAutomaticStart             bool
	allowAutomaticStop              bool
	dampPeerOscillations            bool
	delayOpen                       bool
	sendNotificationWithoutOpen     bool
	collisionDetectEstablishedState bool

	ribIn *rib.RIB
}

// NewFSM creates an FSM for the given peer in Idle state. mode tags
// the instance as the active (dialing) or passive (listening) half of
// the session.
func NewFSM(peer config.Peer, mode string) *FSM {
	fsm := &FSM{
		peer: peer,
		mode: mode,

		connectRetryTime: defaultConnectRetryTime,
		localHoldTime:    int(peer.HoldTime),

		connectRetryTimer: newCountdown(ConnectRetryTimerExpires),
		holdTimer:         newCountdown(HoldTimerExpires),
		keepaliveTimer:    newCountdown(KeepaliveTimerExpires),

		allowAutomaticStart:             peer.AllowAutomaticStart,
		allowAutomaticStop:              peer.AllowAutomaticStop,
		dampPeerOscillations:            peer.DampPeerOscillations,
		delayOpen:                       peer.DelayOpen,
		sendNotificationWithoutOpen:     peer.SendNotificationWithoutOpen,
		collisionDetectEstablishedState: peer.CollisionDetectEstablishedState,

		ribIn: rib.New(),
	}

	fsm.routerID = peer.RouterID()
	fsm.state.Store(Idle)
	fsm.logger = log.WithFields(log.Fields{
		"peer": peer.PeerAddress,
		"mode": mode,
	})
	fsm.queue = newEventQueue(fsm.logger)

	return fsm
}

// Start launches the FSM tasks: dispatch, the three timer ticks. The
// message receiver is started per connection.
func (fsm *FSM) Start() {
	fsm.t.Go(fsm.run)
	fsm.t.Go(fsm.runTimer(fsm.connectRetryTimer))
	fsm.t.Go(fsm.runTimer(fsm.holdTimer))
	fsm.t.Go(fsm.runTimer(fsm.keepaliveTimer))
}

// Stop shuts the FSM down: a ManualStop flushes the queue and tears
// the session down cleanly, then all tasks are killed.
func (fsm *FSM) Stop() error {
	fsm.enqueueEvent(&event{id: ManualStop})
	fsm.t.Kill(nil)
	return fsm.t.Wait()
}

// State returns the current FSM state. Safe for cross-task reads.
func (fsm *FSM) State() int {
	return int(fsm.state.Load())
}

// PeerID returns the BGP identifier learned from the peer's OPEN, or
// zero before the OPEN exchange.
func (fsm *FSM) PeerID() uint32 {
	return fsm.peerID.Load()
}

// ManualStart posts the operator start event.
func (fsm *FSM) ManualStart() {
	if fsm.mode == fsmModePassive {
		fsm.enqueueEvent(&event{id: ManualStartWithPassiveTcpEstablishment})
		return
	}
	fsm.enqueueEvent(&event{id: ManualStart})
}

// ManualStop posts the operator stop event.
func (fsm *FSM) ManualStop() {
	fsm.enqueueEvent(&event{id: ManualStop})
}

func (fsm *FSM) enqueueEvent(ev *event) {
	fsm.queue.enqueue(ev)
}

// run is the FSM dispatch task: the sole consumer of the event queue
// and the only task mutating FSM state.
func (fsm *FSM) run() error {
	defer fsm.cancelDial()

	for {
		ev, ok := fsm.queue.next(fsm.t.Dying())
		if !ok {
			return nil
		}

		if fsm.staleConnEvent(ev) {
			fsm.logger.Debugf("Dropping %s from a connection no longer owned", ev.name())
			continue
		}

		// A socket delivered to a state that cannot adopt it would
		// leak; close it instead of dispatching.
		if ev.id == TcpCRAcked || ev.id == TcpConnectionConfirmed {
			if st := fsm.State(); st != Connect && st != Active {
				fsm.logger.Debugf("Dropping surplus connection carried by %s", ev.name())
				ev.conn.Close()
				continue
			}
		}

		switch fsm.State() {
		case Idle:
			fsm.idle(ev)
		case Connect:
			fsm.connect(ev)
		case Active:
			fsm.active(ev)
		case OpenSent:
			fsm.openSent(ev)
		case OpenConfirm:
			fsm.openConfirm(ev)
		case Established:
			fsm.establishedState(ev)
		}
	}
}

// staleConnEvent reports whether ev originates from a connection this
// FSM no longer owns. Events delivering a new socket are never stale.
func (fsm *FSM) staleConnEvent(ev *event) bool {
	if ev.id == TcpCRAcked || ev.id == TcpConnectionConfirmed {
		return false
	}
	if ev.conn == nil {
		return false
	}
	return ev.conn != fsm.conn
}

// changeState moves the FSM to a new state. Entering Idle performs
// the mandatory cleanup: cancel any in-flight dial, close the socket,
// zero all three timers, clear the peer port and the learned peer ID.
func (fsm *FSM) changeState(new int, reason string) {
	old := fsm.State()

	fsm.logger.WithFields(log.Fields{
		"last_state": stateName[old],
		"new_state":  stateName[new],
		"reason":     reason,
	}).Info("FSM: Neighbor state change")

	fsm.state.Store(int32(new))

	if new == Idle {
		fsm.cancelDial()
		fsm.closeConnection()
		fsm.connectRetryTimer.stop()
		fsm.holdTimer.stop()
		fsm.keepaliveTimer.stop()
		fsm.holdTime = 0
		fsm.keepaliveTime = 0
		fsm.peerPort = 0
		fsm.peerID.Store(0)
	}
}

func (fsm *FSM) sendOpen() {
	fsm.send(packet.EncodeOpenMsg(&packet.BGPOpen{
		Version:       packet.BGPVersion,
		AS:            fsm.peer.LocalAS,
		HoldTime:      uint16(fsm.localHoldTime),
		BGPIdentifier: fsm.routerID,
	}), "Open message")
}

func (fsm *FSM) sendKeepalive() {
	fsm.send(packet.EncodeKeepaliveMsg(), "Keepalive message")
}

func (fsm *FSM) sendNotification(code uint8, subcode uint8, data []byte) {
	fsm.send(packet.EncodeNotificationMsg(&packet.BGPNotification{
		ErrorCode:    code,
		ErrorSubcode: subcode,
		Data:         data,
	}), "Notification message")
}

func (fsm *FSM) sendNotificationErr(bgpErr *packet.BGPError) {
	fsm.sendNotification(bgpErr.ErrorCode, bgpErr.ErrorSubCode, bgpErr.ErrorData)
}

// negotiateTimers applies the hold time negotiation of RFC 4271
// section 4.2: the session hold time is the smaller of the configured
// and the offered value, the keepalive period is a third of it. A
// negotiated hold time of zero disables both timers.
func (fsm *FSM) negotiateTimers(peerHoldTime uint16) {
	fsm.holdTime = fsm.localHoldTime
	if int(peerHoldTime) < fsm.holdTime {
		fsm.holdTime = int(peerHoldTime)
	}

	if fsm.holdTime == 0 {
		fsm.keepaliveTime = 0
		fsm.holdTimer.stop()
		fsm.keepaliveTimer.stop()
		return
	}

	fsm.keepaliveTime = fsm.holdTime / 3
	fsm.holdTimer.set(fsm.holdTime)
	fsm.keepaliveTimer.set(fsm.keepaliveTime)
}
