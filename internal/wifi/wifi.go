// Package wifi manages the appliance's uplink Wi-Fi connection through
// NetworkManager. The correction server is reached over this link, so the
// connectivity supervisor asks it to reconnect whenever the link drops.
package wifi

import (
	"fmt"
	"os/exec"
	"strings"
)

const connName = "SurveyposUplink"

type Client struct {
	// Interface is the wireless device, e.g. "wlan0".
	Interface  string
	SSID       string
	Passphrase string
}

// Up reports whether the uplink device is in the connected state.
func (c *Client) Up() bool {
	iface := c.iface()
	cmd := exec.Command("nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "dev", "status")
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return parseDeviceState(string(out), iface) == "connected"
}

// Reconnect (re)establishes the uplink connection. Deleting the existing
// profile first avoids duplicate-profile drift.
//
// 'device wifi connect' auto-detects security settings (WPA2/WPA3) and
// handles association, which is more robust than 'con add' + 'con up'.
func (c *Client) Reconnect() error {
	if strings.TrimSpace(c.SSID) == "" {
		return fmt.Errorf("wifi ssid is not configured")
	}

	_ = exec.Command("nmcli", "dev", "set", c.iface(), "managed", "yes").Run()
	_ = exec.Command("nmcli", "con", "delete", connName).Run()

	args := []string{
		"device", "wifi", "connect", c.SSID,
		"ifname", c.iface(),
		"name", connName,
	}
	if c.Passphrase != "" {
		args = append(args, "password", c.Passphrase)
	}

	cmd := exec.Command("nmcli", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to connect uplink: %v, output: %s", err, string(out))
	}
	return nil
}

type Status struct {
	Interface string `json:"interface"`
	SSID      string `json:"ssid"`
	State     string `json:"state"` // connected, connecting, disconnected
	IP        string `json:"ip,omitempty"`
}

// GetStatus probes the uplink state for the dashboard.
func (c *Client) GetStatus() Status {
	status := Status{Interface: c.iface(), SSID: c.SSID, State: "disconnected"}

	cmd := exec.Command("nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "dev", "status")
	out, err := cmd.Output()
	if err != nil {
		return status
	}
	if st := parseDeviceState(string(out), status.Interface); st != "" {
		status.State = st
	}

	if status.State == "connected" {
		cmd = exec.Command("nmcli", "-g", "ip4.address", "dev", "show", status.Interface)
		if out, err := cmd.Output(); err == nil {
			status.IP = strings.TrimSpace(string(out))
		}
	}
	return status
}

// parseDeviceState extracts the wifi device state from `nmcli -t -f
// DEVICE,TYPE,STATE dev status` output. Returns "" when the device is not
// listed, "disconnected" for any state other than connected/connecting.
func parseDeviceState(out, iface string) string {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if parts[0] != iface || parts[1] != "wifi" {
			continue
		}
		switch {
		case strings.HasPrefix(parts[2], "connected"):
			return "connected"
		case strings.HasPrefix(parts[2], "connecting"):
			return "connecting"
		default:
			return "disconnected"
		}
	}
	return ""
}

func (c *Client) iface() string {
	if strings.TrimSpace(c.Interface) == "" {
		return "wlan0"
	}
	return c.Interface
}
