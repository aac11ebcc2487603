package server

import (
	"context"
	"fmt"
	"net"

	"github.com/ccie18643/gbgp/packet"
)

// openOutbound starts a cancellable dial to the peer. The result is
// delivered through the event queue: Tcp_CR_Acked carrying the socket
// on success, TcpConnectionFails otherwise. A previous in-flight dial
// is dropped first.
func (fsm *FSM) openOutbound() {
	fsm.cancelDial()

	ctx, cancel := context.WithCancel(context.Background())
	fsm.dialCancel = cancel

	addr := fmt.Sprintf("%s:%d", fsm.peer.PeerIP(), fsm.peer.PeerPort)

	go func() {
		d := net.Dialer{}
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() == nil {
				fsm.enqueueEvent(&event{id: TcpConnectionFails})
			}
			return
		}
		if ctx.Err() != nil {
			c.Close()
			return
		}
		fsm.enqueueEvent(&event{id: TcpCRAcked, conn: c})
	}()
}

// cancelDial aborts an in-flight outbound connect, closing any
// half-open socket.
func (fsm *FSM) cancelDial() {
	if fsm.dialCancel != nil {
		fsm.dialCancel()
		fsm.dialCancel = nil
	}
}

// adopt delivers an inbound socket handed over by the broker.
func (fsm *FSM) adopt(c net.Conn) {
	fsm.enqueueEvent(&event{id: TcpConnectionConfirmed, conn: c})
}

// takeConnection makes the FSM the owner of the socket carried by a
// Tcp_CR_Acked or TcpConnectionConfirmed event and starts the message
// receiver for it.
func (fsm *FSM) takeConnection(ev *event) {
	fsm.conn = ev.conn
	fsm.established.Store(true)

	if addr, ok := ev.conn.RemoteAddr().(*net.TCPAddr); ok {
		fsm.peerPort = uint16(addr.Port)
	}

	c := ev.conn
	fsm.t.Go(func() error {
		fsm.msgReceiver(c)
		return nil
	})
}

// closeConnection closes the owned socket. It is idempotent.
func (fsm *FSM) closeConnection() {
	if fsm.conn != nil {
		fsm.conn.Close()
		fsm.conn = nil
	}
	fsm.established.Store(false)
}

// send writes an encoded message to the peer. Callers expect the FSM
// to carry on: a write failure surfaces as TcpConnectionFails and is
// handled by the state's normal transition rules.
func (fsm *FSM) send(b []byte, what string) {
	if !fsm.established.Load() || fsm.conn == nil {
		fsm.logger.Infof("[TX-ERR] %s", what)
		return
	}

	if _, err := fsm.conn.Write(b); err != nil {
		fsm.logger.WithField("error", err).Infof("[TX-ERR] %s", what)
		fsm.established.Store(false)
		fsm.enqueueEvent(&event{id: TcpConnectionFails, conn: fsm.conn})
		return
	}

	fsm.logger.Infof("[TX] %s", what)
}

// msgReceiver reads from c, reassembles complete BGP messages and
// turns them into FSM events. It exits on connection loss or on the
// first protocol error, which stops processing of the buffer.
func (fsm *FSM) msgReceiver(c net.Conn) {
	buffer := make([]byte, 0, packet.MaxLen)
	chunk := make([]byte, packet.MaxLen)

	for {
		n, err := c.Read(chunk)
		if err != nil || n == 0 {
			fsm.enqueueEvent(&event{id: TcpConnectionFails, conn: c})
			return
		}
		buffer = append(buffer, chunk[:n]...)

		for {
			m, consumed, err := packet.Decode(buffer, fsm.routerID, fsm.peer.PeerAS)
			if err != nil {
				if packet.IsIncomplete(err) {
					break
				}
				bgpErr, ok := err.(packet.BGPError)
				if !ok {
					fsm.logger.WithField("error", err).Warning("Failed to decode BGP message")
					fsm.enqueueEvent(&event{id: TcpConnectionFails, conn: c})
					return
				}
				fsm.enqueueDecodeError(bgpErr, c)
				return
			}

			buffer = buffer[consumed:]
			fsm.enqueueMessage(m, c)
		}
	}
}

func (fsm *FSM) enqueueDecodeError(bgpErr packet.BGPError, c net.Conn) {
	switch bgpErr.ErrorCode {
	case packet.MessageHeaderError:
		fsm.enqueueEvent(&event{id: BGPHeaderErr, bgpErr: &bgpErr, conn: c})
	case packet.OpenMessageError:
		fsm.enqueueEvent(&event{id: BGPOpenMsgErr, bgpErr: &bgpErr, conn: c})
	case packet.UpdateMessageError:
		fsm.enqueueEvent(&event{id: UpdateMsgErr, bgpErr: &bgpErr, conn: c})
	default:
		fsm.enqueueEvent(&event{id: TcpConnectionFails, conn: c})
	}
}

func (fsm *FSM) enqueueMessage(m *packet.BGPMessage, c net.Conn) {
	m.Dump()

	switch m.Header.Type {
	case packet.OpenMsg:
		fsm.logger.Info("[RX] Open message")
		fsm.enqueueEvent(&event{id: BGPOpen, msg: m, conn: c})
	case packet.KeepaliveMsg:
		fsm.logger.Info("[RX] Keepalive message")
		fsm.enqueueEvent(&event{id: KeepAliveMsg, msg: m, conn: c})
	case packet.UpdateMsg:
		fsm.logger.Info("[RX] Update message")
		fsm.enqueueEvent(&event{id: UpdateMsg, msg: m, conn: c})
	case packet.NotificationMsg:
		notif := m.Body.(*packet.BGPNotification)
		fsm.logger.Infof("[RX] Notification message (%d, %d)", notif.ErrorCode, notif.ErrorSubcode)
		if notif.ErrorCode == packet.OpenMessageError && notif.ErrorSubcode == packet.UnsupportedVersionNumber {
			fsm.enqueueEvent(&event{id: NotifMsgVerErr, msg: m, conn: c})
		} else {
			fsm.enqueueEvent(&event{id: NotifMsg, msg: m, conn: c})
		}
	}
}
