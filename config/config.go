package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
	"github.com/taktv6/tflow2/convert"
)

// Config is the top level configuration of the daemon.
type Config struct {
	Peers []Peer `mapstructure:"peers"`
}

// Peer is the configuration of one BGP peering.
type Peer struct {
	LocalID     string `mapstructure:"local_id"`
	LocalAS     uint16 `mapstructure:"local_as"`
	HoldTime    uint16 `mapstructure:"hold_time"`
	PeerAddress string `mapstructure:"peer_address"`
	PeerPort    uint16 `mapstructure:"peer_port"`
	PeerAS      uint16 `mapstructure:"peer_as"`

	ActiveMode  bool `mapstructure:"active_mode"`
	PassiveMode bool `mapstructure:"passive_mode"`

	AllowAutomaticStart             bool `mapstructure:"allow_automatic_start"`
	AllowAutomaticStop              bool `mapstructure:"allow_automatic_stop"`
	DampPeerOscillations            bool `mapstructure:"damp_peer_oscillations"`
	DelayOpen                       bool `mapstructure:"delay_open"`
	SendNotificationWithoutOpen     bool `mapstructure:"send_notification_without_open"`
	CollisionDetectEstablishedState bool `mapstructure:"collision_detect_established_state"`
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("peers", []map[string]interface{}{})

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %v", path, err)
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %v", path, err)
	}

	for i := range c.Peers {
		applyDefaults(&c.Peers[i])
		if err := validate(&c.Peers[i]); err != nil {
			return nil, fmt.Errorf("peer %s: %v", c.Peers[i].PeerAddress, err)
		}
	}

	return c, nil
}

func applyDefaults(p *Peer) {
	if p.PeerPort == 0 {
		p.PeerPort = 179
	}
	if p.HoldTime == 0 {
		p.HoldTime = 180
	}
	if !p.ActiveMode && !p.PassiveMode {
		p.ActiveMode = true
		p.PassiveMode = true
	}
}

func validate(p *Peer) error {
	if net.ParseIP(p.LocalID).To4() == nil {
		return fmt.Errorf("local_id %q is not an IPv4 address", p.LocalID)
	}
	if net.ParseIP(p.PeerAddress).To4() == nil {
		return fmt.Errorf("peer_address %q is not an IPv4 address", p.PeerAddress)
	}
	if p.LocalAS == 0 {
		return fmt.Errorf("local_as must be set")
	}
	if p.PeerAS == 0 {
		return fmt.Errorf("peer_as must be set")
	}
	return nil
}

// RouterID returns the local BGP identifier as a 32 bit integer.
func (p *Peer) RouterID() uint32 {
	return convert.Uint32b(net.ParseIP(p.LocalID).To4())
}

// PeerIP returns the configured peer address.
func (p *Peer) PeerIP() net.IP {
	return net.ParseIP(p.PeerAddress).To4()
}
