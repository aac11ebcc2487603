package server

// connect handles events while an outbound TCP connection is being
// attempted.
func (fsm *FSM) connect(ev *event) {
	switch ev.id {
	case ManualStop:
		fsm.logger.Info(ev.name())

		fsm.connectRetryCounter = 0
		fsm.connectRetryTimer.stop()
		fsm.changeState(Idle, ev.name())

	case ConnectRetryTimerExpires:
		fsm.logger.Info(ev.name())

		// Drop the in-flight attempt and dial again.
		fsm.connectRetryTimer.set(fsm.connectRetryTime)
		fsm.openOutbound()

	case TcpCRAcked, TcpConnectionConfirmed:
		fsm.logger.Info(ev.name())

		fsm.takeConnection(ev)
		fsm.connectRetryTimer.stop()
		fsm.sendOpen()
		fsm.holdTimer.set(initialHoldTime)
		fsm.changeState(OpenSent, ev.name())

	case TcpConnectionFails:
		fsm.logger.Info(ev.name())

		fsm.connectRetryTimer.stop()
		fsm.changeState(Idle, ev.name())

	case BGPHeaderErr, BGPOpenMsgErr:
		fsm.logger.Info(ev.name())

		if fsm.sendNotificationWithoutOpen {
			fsm.sendNotificationErr(ev.bgpErr)
		}
		fsm.connectRetryTimer.stop()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case NotifMsgVerErr:
		fsm.logger.Info(ev.name())

		fsm.connectRetryTimer.stop()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())

	case AutomaticStop, HoldTimerExpires, KeepaliveTimerExpires, IdleHoldTimerExpires,
		BGPOpen, OpenCollisionDump, NotifMsg, KeepAliveMsg, UpdateMsg, UpdateMsgErr:
		fsm.logger.Info(ev.name())

		fsm.connectRetryTimer.stop()
		fsm.connectRetryCounter++
		fsm.changeState(Idle, ev.name())
	}
}
