package cli

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"viera/internal"
	internalcli "viera/internal/cli"
	"viera/internal/hub"
	"viera/internal/logger"
	"viera/internal/viera"
)

// Setup screen fields
const (
	setupFieldHost = iota
	setupFieldName
	setupFieldConnect
	setupFieldCount
)

// connectedMsg reports the result of the probe that follows a connect
type connectedMsg struct {
	client *viera.Client
	on     bool
	err    error
}

// SetupModel handles the device setup screen
type SetupModel struct {
	inputs       []textinput.Model
	focusedField int

	// Devices from the hub configuration, cycled with ctrl+n
	configured []hub.DeviceConfig
	configIdx  int
	configPath string

	connecting      bool
	connectionError string

	client *viera.Client
	on     bool

	debugMode bool
	testMode  bool
}

// NewSetupModel creates a new setup screen model
func NewSetupModel(debug, test bool, configPath string) SetupModel {
	inputs := make([]textinput.Model, 2)

	inputs[setupFieldHost] = textinput.New()
	inputs[setupFieldHost].Prompt = "Host: "
	inputs[setupFieldHost].Placeholder = "192.168.1.100"
	inputs[setupFieldHost].CharLimit = 64
	inputs[setupFieldHost].Focus()

	inputs[setupFieldName] = textinput.New()
	inputs[setupFieldName].Prompt = "Name: "
	inputs[setupFieldName].Placeholder = "Living Room TV"
	inputs[setupFieldName].CharLimit = 64

	m := SetupModel{
		inputs:     inputs,
		configIdx:  -1,
		configPath: configPath,
		debugMode:  debug,
		testMode:   test,
	}

	if _, err := os.Stat(configPath); configPath != "" && err == nil {
		if devices, err := internalcli.NewConfigManager(configPath).ListDevices(); err == nil {
			m.configured = devices
		} else {
			log := logger.New()
			log.Debug().Err(err).Str("config_path", configPath).Msg("No configured devices loaded")
		}
	}

	return m
}

func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles setup screen messages
func (m SetupModel) Update(msg tea.Msg) (SetupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.connectionError = msg.err.Error()
			return m, nil
		}
		m.connectionError = ""
		m.client = msg.client
		m.on = msg.on
		return m, nil

	case tea.KeyMsg:
		if m.connecting {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyTab, tea.KeyDown:
			m.focus((m.focusedField + 1) % setupFieldCount)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			m.focus((m.focusedField + setupFieldCount - 1) % setupFieldCount)
			return m, nil
		case tea.KeyCtrlN:
			m.nextConfigured()
			return m, nil
		case tea.KeyEnter:
			if m.focusedField == setupFieldConnect {
				return m.handleConnect()
			}
			m.focus(m.focusedField + 1)
			return m, nil
		}
	}

	if m.focusedField < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focusedField], cmd = m.inputs[m.focusedField].Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the setup screen
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Viera CLI - Device Setup"))
	b.WriteString("\n\n")

	b.WriteString(subtitleStyle.Render("Panasonic Viera TV (port 55000 unless host:port is given)"))
	b.WriteString("\n\n")

	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	connectStyle := buttonStyle
	if m.focusedField == setupFieldConnect {
		connectStyle = buttonActiveStyle
	}
	connectText := "Connect"
	if m.connecting {
		connectText = "Connecting..."
	}
	b.WriteString(connectStyle.Render(connectText))
	b.WriteString("\n\n")

	if len(m.configured) > 0 {
		b.WriteString(subtitleStyle.Render("Configured devices (ctrl+n to cycle):"))
		b.WriteString("\n")
		for i, device := range m.configured {
			cursor := "  "
			if i == m.configIdx {
				cursor = "> "
			}
			b.WriteString(cursor + device.Name + " " + helpStyle.Render(device.Endpoint().Address()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.connectionError != "" {
		b.WriteString(errorStyle.Render("Error: " + m.connectionError))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("↑/↓/Tab: Navigate • Enter: Next/Connect • Ctrl+N: Configured device • Esc/Ctrl+C: Quit"))

	return b.String()
}

func (m *SetupModel) focus(field int) {
	m.focusedField = field
	for i := range m.inputs {
		if i == field {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *SetupModel) nextConfigured() {
	if len(m.configured) == 0 {
		return
	}
	m.configIdx = (m.configIdx + 1) % len(m.configured)
	device := m.configured[m.configIdx]
	m.inputs[setupFieldHost].SetValue(device.Endpoint().Address())
	m.inputs[setupFieldName].SetValue(device.Name)
}

// handleConnect builds a client and probes the set once before switching
// to the remote screen. A set that does not answer in time reads as off
// and still connects; a refused connection does not.
func (m SetupModel) handleConnect() (SetupModel, tea.Cmd) {
	address := strings.TrimSpace(m.inputs[setupFieldHost].Value())
	endpoint, ok := parseHostAddress(address)
	if !ok {
		m.connectionError = "invalid host address: " + address
		return m, nil
	}

	name := strings.TrimSpace(m.inputs[setupFieldName].Value())
	if name == "" {
		name = endpoint.Host
	}

	options := internal.NewModeOptions(internal.WithDebug(m.debugMode), internal.WithTest(m.testMode))
	if m.configIdx >= 0 && m.configured[m.configIdx].Endpoint() == endpoint {
		device := m.configured[m.configIdx]
		options.ProbeTimeout = device.ProbeTimeout
		options.CommandTimeout = device.CommandTimeout
	}

	client := viera.NewClientForEndpoint(name, endpoint, options)
	m.connecting = true
	m.connectionError = ""

	return m, func() tea.Msg {
		on, err := client.ProbeStatus(context.Background())
		return connectedMsg{client: client, on: on, err: err}
	}
}

// IsConnected returns true once a probe has succeeded
func (m SetupModel) IsConnected() bool {
	return m.client != nil
}

// Client returns the connected client
func (m SetupModel) Client() *viera.Client {
	return m.client
}

// PoweredOn returns the power state read while connecting
func (m SetupModel) PoweredOn() bool {
	return m.on
}
