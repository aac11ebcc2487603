package server

import (
	"net"

	log "github.com/sirupsen/logrus"
	tomb "gopkg.in/tomb.v2"
)

// Broker is the single TCP acceptor for inbound BGP connections. An
// accepted socket is handed to the passive FSM registered for the
// source address; sockets from unknown sources are closed.
type Broker struct {
	t        tomb.Tomb
	registry *Registry
	listener net.Listener
}

func NewBroker(registry *Registry) *Broker {
	return &Broker{registry: registry}
}

// ListenAndServe binds addr and starts accepting connections.
func (b *Broker) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	b.listener = l

	log.WithField("addr", addr).Info("Broker: Listening for inbound BGP connections")

	b.t.Go(b.acceptLoop)
	return nil
}

func (b *Broker) acceptLoop() error {
	for {
		c, err := b.listener.Accept()
		if err != nil {
			select {
			case <-b.t.Dying():
				return nil
			default:
			}
			log.WithField("error", err).Warning("Broker: Accept failed")
			continue
		}
		b.dispatch(c)
	}
}

// dispatch hands an accepted socket to the matching passive FSM.
func (b *Broker) dispatch(c net.Conn) {
	host, _, err := net.SplitHostPort(c.RemoteAddr().String())
	if err != nil {
		c.Close()
		return
	}

	fsm := b.registry.Match(host)
	if fsm == nil {
		log.WithField("peer", host).Debug("Broker: No listener for peer, closing connection")
		c.Close()
		return
	}

	log.WithField("peer", host).Info("Broker: Inbound connection matched to passive FSM")
	fsm.adopt(c)
}

// Stop closes the listener and waits for the accept loop to exit.
func (b *Broker) Stop() error {
	b.t.Kill(nil)
	if b.listener != nil {
		b.listener.Close()
	}
	return b.t.Wait()
}
