package cli

import (
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"viera/internal/viera"
)

// Screen types
type screen int

const (
	screenDeviceSetup screen = iota
	screenRemoteControl
)

// Common styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#7D56F4")).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 2).
			Margin(0, 1)

	buttonActiveStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#FF79C6")).
				Foreground(lipgloss.Color("#FAFAFA")).
				Padding(0, 2).
				Margin(0, 1)

	remoteButtonStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 1).
				Margin(0, 1).
				Background(lipgloss.Color("#44475A")).
				Foreground(lipgloss.Color("#F8F8F2"))

	remoteButtonActiveStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 1).
				Margin(0, 1).
				Background(lipgloss.Color("#FF79C6")).
				Foreground(lipgloss.Color("#FAFAFA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))
)

// Remote button types
type remoteButton int

const (
	buttonPowerOff remoteButton = iota
	buttonPowerOn
	buttonVolumeUp
	buttonVolumeDown
	buttonMute
	buttonStatus
)

var buttonLabels = map[remoteButton]string{
	buttonPowerOff:   "power_off",
	buttonPowerOn:    "power_on",
	buttonVolumeUp:   "volume_up",
	buttonVolumeDown: "volume_down",
	buttonMute:       "mute",
	buttonStatus:     "power_status",
}

func (b remoteButton) String() string {
	return buttonLabels[b]
}

// LogEntry represents a log entry for display
type LogEntry struct {
	Timestamp time.Time
	Level     string // INF, DBG, ERR
	Message   string
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)

// parseHostAddress accepts "host" or "host:port" and returns the endpoint
func parseHostAddress(address string) (viera.Endpoint, bool) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		host = address
		portStr = ""
	}

	if host == "" {
		return viera.Endpoint{}, false
	}
	if net.ParseIP(host) == nil && !hostnamePattern.MatchString(host) {
		return viera.Endpoint{}, false
	}

	endpoint := viera.NewEndpoint(host)
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return viera.Endpoint{}, false
		}
		endpoint.Port = port
	}

	return endpoint, true
}
