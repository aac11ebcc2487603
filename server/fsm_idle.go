package server

// idle handles events in the Idle state. Only start events are acted
// upon; everything else is ignored.
func (fsm *FSM) idle(ev *event) {
	switch ev.id {
	case ManualStart, AutomaticStart:
		if ev.id == AutomaticStart && !fsm.allowAutomaticStart {
			return
		}
		fsm.logger.Info(ev.name())

		fsm.connectRetryCounter = 0
		fsm.connectRetryTimer.set(fsm.connectRetryTime)
		fsm.openOutbound()
		fsm.changeState(Connect, ev.name())

	case ManualStartWithPassiveTcpEstablishment, AutomaticStartWithPassiveTcpEstablishment:
		if ev.id == AutomaticStartWithPassiveTcpEstablishment && !fsm.allowAutomaticStart {
			return
		}
		fsm.logger.Info(ev.name())

		fsm.passiveTcpEstablishment = true
		fsm.connectRetryCounter = 0
		fsm.connectRetryTimer.set(fsm.connectRetryTime)
		fsm.changeState(Active, ev.name())
	}
}
