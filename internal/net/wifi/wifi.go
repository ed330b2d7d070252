// Package wifi manages the wireless uplink through NetworkManager's nmcli.
// The rest of the system only sees join/scan/quality; the connection
// mechanics underneath are not its concern.
package wifi

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// Network is one visible access point.
type Network struct {
	SSID   string `json:"ssid"`
	Signal int    `json:"signal"` // link quality percent (0-100)
}

// Manager is the wireless uplink as the mode controller sees it.
type Manager interface {
	// Join associates with the given network. One attempt; retries are the
	// caller's policy.
	Join(ssid, password string) error
	// Scan lists visible networks.
	Scan() ([]Network, error)
	// Quality returns the current link quality percent, 0 when unknown.
	Quality() int
}

// Nmcli shells out to nmcli, the way the fleet boards are provisioned.
type Nmcli struct {
	iface string
	run   func(args ...string) (string, error)
}

// NewNmcli creates a manager bound to the given wireless interface.
func NewNmcli(iface string) *Nmcli {
	return &Nmcli{
		iface: iface,
		run: func(args ...string) (string, error) {
			out, err := exec.Command("nmcli", args...).CombinedOutput()
			return string(out), err
		},
	}
}

func (n *Nmcli) Join(ssid, password string) error {
	debug.Info("Wifi: joining %q on %s", ssid, n.iface)
	out, err := n.run("dev", "wifi", "connect", ssid, "password", password, "ifname", n.iface)
	if err != nil {
		return fmt.Errorf("nmcli connect %q: %w (%s)", ssid, err, strings.TrimSpace(out))
	}
	return nil
}

func (n *Nmcli) Scan() ([]Network, error) {
	out, err := n.run("-t", "-f", "SSID,SIGNAL", "dev", "wifi", "list", "ifname", n.iface)
	if err != nil {
		return nil, fmt.Errorf("nmcli scan: %w", err)
	}

	var networks []Network
	for _, line := range strings.Split(out, "\n") {
		ssid, signal, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || ssid == "" {
			continue
		}
		s, err := strconv.Atoi(signal)
		if err != nil {
			continue
		}
		networks = append(networks, Network{SSID: ssid, Signal: s})
	}
	return networks, nil
}

func (n *Nmcli) Quality() int {
	out, err := n.run("-t", "-f", "IN-USE,SIGNAL", "dev", "wifi", "list", "ifname", n.iface)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(out, "\n") {
		inUse, signal, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || inUse != "*" {
			continue
		}
		if s, err := strconv.Atoi(signal); err == nil {
			return s
		}
	}
	return 0
}
