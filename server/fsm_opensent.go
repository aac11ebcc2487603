package server

import "github.com/ccie18643/gbgp/packet"

// openSent handles events after our OPEN has been sent, while waiting
// for the peer's OPEN.
func (fsm *FSM) openSent(ev *event) {
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

	case TcpConnectionFails:
		fsm.logger.Info(ev.name())

		fsm.closeConnection()
		fsm.connectRetryTimer.set(fsm.connectRetryTime)
		fsm.holdTimer.stop()
		fsm.changeState(Active, ev.name())

	case BGPOpen:
		fsm.logger.Info(ev.name())

		open := ev.msg.Body.(*packet.BGPOpen)

		fsm.connectRetryTimer.stop()
		fsm.sendKeepalive()
		fsm.negotiateTimers(open.HoldTime)
		fsm.peerID.Store(open.BGPIdentifier)
		fsm.changeState(OpenConfirm, ev.name())

	case BGPHeaderErr, BGPOpenMsgErr:
		fsm.logger.Info(ev.name())

		fsm.sendNotificationErr(ev.bgpErr)
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case NotifMsgVerErr:
		fsm.logger.Info(ev.name())

		fsm.changeState(Idle, ev.name())

	case ConnectRetryTimerExpires, KeepaliveTimerExpires, DelayOpenTimerExpires,
		IdleHoldTimerExpires, BGPOpenWithDelayOpenTimerRunning,
		NotifMsg, KeepAliveMsg, UpdateMsg, UpdateMsgErr:
		fsm.fsmError(ev)
	}
}

// fsmError handles receipt of an event that is illegal in the current
// state: NOTIFICATION with code FSM Error, then tear down.
func (fsm *FSM) fsmError(ev *event) {
	fsm.logger.Info(ev.name())

	fsm.sendNotification(packet.FiniteStateMachineError, 0, nil)
	fsm.connectRetryTimer.stop()
	fsm.connectRetryCounter++
	fsm.changeState(Idle, "FSM error: "+ev.name())
}
