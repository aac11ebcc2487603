package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	log "github.com/sirupsen/logrus"

	"github.com/ccie18643/gbgp/config"
	"github.com/ccie18643/gbgp/packet"
	"github.com/ccie18643/gbgp/server"
)

func main() {
	configFile := flag.String("config", "gbgp.yml", "path to the configuration file")
	listenAddr := flag.String("listen", fmt.Sprintf("0.0.0.0:%d", packet.BGPPort), "listen address for inbound BGP connections")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		glog.Exitf("Unable to load configuration: %v", err)
	}
	if len(cfg.Peers) == 0 {
		glog.Exitf("No peers configured in %s", *configFile)
	}

	registry := server.NewRegistry()

	broker := server.NewBroker(registry)
	if err := broker.ListenAndServe(*listenAddr); err != nil {
		glog.Exitf("Unable to listen on %s: %v", *listenAddr, err)
	}

	sessions := make([]*server.Session, 0, len(cfg.Peers))
	for _, peer := range cfg.Peers {
		s := server.NewSession(peer, registry)
		s.Start()
		sessions = append(sessions, s)

		log.WithFields(log.Fields{
			"peer":    peer.PeerAddress,
			"peer_as": peer.PeerAS,
		}).Info("Started BGP session")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down")
	for _, s := range sessions {
		s.Stop()
	}
	broker.Stop()
}
