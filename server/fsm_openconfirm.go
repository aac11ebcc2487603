package server

import "github.com/ccie18643/gbgp/packet"

// openConfirm handles events after the OPEN exchange, while waiting
// for the peer's first KEEPALIVE.
func (fsm *FSM) openConfirm(ev *event) {
	switch ev.id {
	case ManualStop:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.Cease, 0, nil)
		fsm.connectRetryCounter = 0
		fsm.changeState(Idle, ev.name())

	case AutomaticStop:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.Cease, 0, nil)
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case HoldTimerExpires:
		fsm.logger.Info(ev.name())

		fsm.sendNotification(packet.HoldTimeExpired, 0, nil)
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case KeepaliveTimerExpires:
		fsm.logger.Info(ev.name())

		fsm.sendKeepalive()
		fsm.keepaliveTimer.set(fsm.keepaliveTime)

	case TcpConnectionFails, NotifMsg:
		fsm.logger.Info(ev.name())

		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case BGPOpen:
		// A second OPEN on the same connection. Cross-connection
		// collisions are arbitrated by the session's collision
		// detector; on a single connection a duplicate OPEN is an
		// FSM error.
		fsm.fsmError(ev)

	case BGPHeaderErr, BGPOpenMsgErr:
		fsm.logger.Info(ev.name())

		fsm.sendNotificationErr(ev.bgpErr)
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case NotifMsgVerErr:
		fsm.logger.Info(ev.name())

		fsm.changeState(Idle, ev.name())

	case KeepAliveMsg:
		fsm.logger.Info(ev.name())

		if fsm.holdTime > 0 {
			fsm.holdTimer.set(fsm.holdTime)
		}
		fsm.changeState(Established, ev.name())

	case ConnectRetryTimerExpires, DelayOpenTimerExpires, IdleHoldTimerExpires,
		BGPOpenWithDelayOpenTimerRunning, UpdateMsg, UpdateMsgErr:
		fsm.fsmError(ev)
	}
}
