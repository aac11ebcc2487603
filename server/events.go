package server

import (
	"net"

	"github.com/ccie18643/gbgp/packet"
)

// FSM event identifiers per RFC 4271 section 8.1. The numbering is
// stable because it shows up in operator facing logs.
const (
	// Administrative events
	ManualStart                               = 1
	ManualStop                                = 2
	AutomaticStart                            = 3
	ManualStartWithPassiveTcpEstablishment    = 4
	AutomaticStartWithPassiveTcpEstablishment = 5
	AutomaticStop                             = 8

	// Timer events
	ConnectRetryTimerExpires = 9
	HoldTimerExpires         = 10
	KeepaliveTimerExpires    = 11
	DelayOpenTimerExpires    = 12
	IdleHoldTimerExpires     = 13

	// TCP connection events
	TcpCRAcked             = 16
	TcpConnectionConfirmed = 17
	TcpConnectionFails     = 18

	// BGP message events
	BGPOpen                          = 19
	BGPOpenWithDelayOpenTimerRunning = 20
	BGPHeaderErr                     = 21
	BGPOpenMsgErr                    = 22
	OpenCollisionDump                = 23
	NotifMsgVerErr                   = 24
	NotifMsg                         = 25
	KeepAliveMsg                     = 26
	UpdateMsg                        = 27
	UpdateMsgErr                     = 28
)

var eventName = map[int]string{
	ManualStart:                               "ManualStart",
	ManualStop:                                "ManualStop",
	AutomaticStart:                            "AutomaticStart",
	ManualStartWithPassiveTcpEstablishment:    "ManualStart_with_PassiveTcpEstablishment",
	AutomaticStartWithPassiveTcpEstablishment: "AutomaticStart_with_PassiveTcpEstablishment",
	AutomaticStop:                             "AutomaticStop",
	ConnectRetryTimerExpires:                  "ConnectRetryTimer_Expires",
	HoldTimerExpires:                          "HoldTimer_Expires",
	KeepaliveTimerExpires:                     "KeepaliveTimer_Expires",
	DelayOpenTimerExpires:                     "DelayOpenTimer_Expires",
	IdleHoldTimerExpires:                      "IdleHoldTimer_Expires",
	TcpCRAcked:                                "Tcp_CR_Acked",
	TcpConnectionConfirmed:                    "TcpConnectionConfirmed",
	TcpConnectionFails:                        "TcpConnectionFails",
	BGPOpen:                                   "BGPOpen",
	BGPOpenWithDelayOpenTimerRunning:          "BGPOpen_with_DelayOpenTimer_running",
	BGPHeaderErr:                              "BGPHeaderErr",
	BGPOpenMsgErr:                             "BGPOpenMsgErr",
	OpenCollisionDump:                         "OpenCollisionDump",
	NotifMsgVerErr:                            "NotifMsgVerErr",
	NotifMsg:                                  "NotifMsg",
	KeepAliveMsg:                              "KeepAliveMsg",
	UpdateMsg:                                 "UpdateMsg",
	UpdateMsgErr:                              "UpdateMsgErr",
}

// event is one entry on an FSM's queue. conn carries the socket for
// TCP events and identifies the source connection for message events
// so that events from a connection the FSM no longer owns can be
// discarded. serial is attached on enqueue for log correlation only.
type event struct {
	id     int
	serial uint16
	msg    *packet.BGPMessage
	bgpErr *packet.BGPError
	conn   net.Conn
}

func (ev *event) name() string {
	if n, ok := eventName[ev.id]; ok {
		return n
	}
	return "Unknown"
}

func isStopEvent(id int) bool {
	return id == ManualStop || id == AutomaticStop
}
