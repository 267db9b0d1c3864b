package config

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// Settings bundles the credentials and connection parameters needed to reach
// the local WiFi network and the MQTT broker. Values are layered from the
// configuration file, environment and command line flags before validation.
type Settings struct {
	// WiFi network. On a regular Linux host the OS manages the actual
	// association, so these are optional provisioning data. They must be
	// set as a pair.
	WifiSSID     string
	WifiPassword string

	// MQTT broker.
	BrokerIP       string
	BrokerPort     int
	BrokerUsername string
	BrokerPassword string
	ClientID       string
}

// Validate checks that the settings are complete and internally consistent.
// The broker address must be a literal IP, the port must fit in the TCP port
// range and credentials must be present.
func (s *Settings) Validate() error {
	if s.WifiSSID == "" && s.WifiPassword != "" {
		return fmt.Errorf("wifi password set without an ssid")
	}
	if s.WifiSSID != "" && s.WifiPassword == "" {
		return fmt.Errorf("wifi ssid %q set without a password", s.WifiSSID)
	}

	if s.BrokerIP == "" {
		return fmt.Errorf("broker ip not set")
	}
	if net.ParseIP(s.BrokerIP) == nil {
		return fmt.Errorf("broker ip %q is not a valid IP address", s.BrokerIP)
	}
	if s.BrokerPort < 1 || s.BrokerPort > 65535 {
		return fmt.Errorf("broker port %d outside of range 1-65535", s.BrokerPort)
	}
	if s.BrokerUsername == "" {
		return fmt.Errorf("broker username not set")
	}
	if s.BrokerPassword == "" {
		return fmt.Errorf("broker password not set")
	}
	if s.ClientID == "" {
		return fmt.Errorf("client id not set")
	}

	return nil
}

// BrokerURL assembles the broker address in the form the MQTT dialer expects.
func (s *Settings) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", s.BrokerIP, s.BrokerPort)
}

// EnsureClientID fills in a generated client ID when none was configured.
// The broker requires the ID to be unique, a random suffix avoids kicking
// another client off the session.
func (s *Settings) EnsureClientID() {
	if s.ClientID != "" {
		return
	}

	s.ClientID = "devmon-" + uuid.NewString()[:8]
}
