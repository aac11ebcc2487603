package server

import (
	bnet "github.com/ccie18643/gbgp/net"
	"github.com/ccie18643/gbgp/packet"
)

// establishedState handles events on a fully established peering.
func (fsm *FSM) establishedState(ev *event) {
	switch ev.id {
	case ManualStop:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.Cease, 0, nil)
		fsm.purgeRoutes()
		fsm.connectRetryCounter = 0
		fsm.changeState(Idle, ev.name())

	case AutomaticStop:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.Cease, 0, nil)
		fsm.purgeRoutes()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case HoldTimerExpires:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.HoldTimeExpired, 0, nil)
		fsm.purgeRoutes()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case KeepaliveTimerExpires:
		fsm.logger.Info(ev.name())

		fsm.sendKeepalive()
		if fsm.keepaliveTime > 0 {
			fsm.keepaliveTimer.set(fsm.keepaliveTime)
		}

	case TcpConnectionFails, NotifMsgVerErr, NotifMsg:
		fsm.logger.Info(ev.name())

		fsm.purgeRoutes()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case KeepAliveMsg:
		fsm.logger.Info(ev.name())

		if fsm.holdTime > 0 {
			fsm.holdTimer.set(fsm.holdTime)
		}

	case UpdateMsg:
		fsm.logger.Info(ev.name())

		fsm.processUpdate(ev.msg.Body.(*packet.BGPUpdate))
		if fsm.holdTime > 0 {
			fsm.holdTimer.set(fsm.holdTime)
		}

	case UpdateMsgErr:
		fsm.logger.Info(ev.name())

		fsm.sendNotificationErr(ev.bgpErr)
		fsm.purgeRoutes()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case ConnectRetryTimerExpires, DelayOpenTimerExpires, IdleHoldTimerExpires,
		BGPOpen, BGPOpenWithDelayOpenTimerRunning, BGPHeaderErr, BGPOpenMsgErr:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.FiniteStateMachineError, 0, nil)
		fsm.purgeRoutes()
		fsm.connectRetryTimer.stop()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, "FSM error: "+ev.name())
	}
}

// processUpdate applies an UPDATE to the adjacency RIB-in. Anything
// beyond prefix bookkeeping happens outside the session core.
func (fsm *FSM) processUpdate(u *packet.BGPUpdate) {
	for _, r := range u.WithdrawnRoutes {
		pfx := bnet.NewPfxFromBytes(r.IP, r.Pfxlen)
		fsm.logger.Debugf("RIB: Removing prefix %s", pfx.String())
		fsm.ribIn.Remove(pfx)
	}

	for _, r := range u.NLRI {
		pfx := bnet.NewPfxFromBytes(r.IP, r.Pfxlen)
		fsm.logger.Debugf("RIB: Adding prefix %s", pfx.String())
		fsm.ribIn.Insert(pfx)
	}
}

// purgeRoutes drops everything learned on this connection.
func (fsm *FSM) purgeRoutes() {
	fsm.ribIn.Flush()
}
