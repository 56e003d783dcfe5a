// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"viera/internal/accessory"
	"viera/internal/logger"
	"viera/internal/viera"
)

const maxLogLines = 3

// tvEventMsg carries a state change observed on the television
type tvEventMsg accessory.Event

// actionDoneMsg reports the end of a button press
type actionDoneMsg struct {
	button  remoteButton
	on      bool
	err     error
	elapsed time.Duration
}

// RemoteModel handles the remote control screen
type RemoteModel struct {
	tv     *accessory.Television
	events chan accessory.Event
	done   chan struct{}

	name      string
	address   string
	debugMode bool
	testMode  bool

	spinner  spinner.Model
	inFlight int

	lastButton remoteButton
	lastErr    error
	lastAt     time.Time

	logBuffer []LogEntry
}

// NewRemoteModel wraps the connected client in a television that drives the
// momentary switches
func NewRemoteModel(client *viera.Client, on, debug, test bool) RemoteModel {
	events := make(chan accessory.Event, 32)
	done := make(chan struct{})

	tv := accessory.NewTelevision(client.Name(), client, accessory.WithObserver(func(e accessory.Event) {
		select {
		case events <- e:
		case <-done:
		default:
		}
	}))
	tv.Observe(on)

	s := spinner.New()
	s.Spinner = spinner.Dot

	return RemoteModel{
		tv:        tv,
		events:    events,
		done:      done,
		name:      client.Name(),
		address:   client.Endpoint().Address(),
		debugMode: debug,
		testMode:  test,
		spinner:   s,
	}
}

func (m RemoteModel) Init() tea.Cmd {
	return m.waitForEvent()
}

// Close detaches the model from the television
func (m RemoteModel) Close() {
	if m.tv == nil {
		return
	}
	close(m.done)
	m.tv.Close()
}

// Update handles remote control screen messages
func (m RemoteModel) Update(msg tea.Msg) (RemoteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tvEventMsg:
		return m, m.waitForEvent()

	case actionDoneMsg:
		m.inFlight--
		m.lastButton = msg.button
		m.lastErr = msg.err
		m.lastAt = time.Now()
		m.logAction(msg)
		return m, nil

	case spinner.TickMsg:
		if m.inFlight == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "p", "P":
			return m.press(buttonPowerOff)
		case "o", "O":
			return m.press(buttonPowerOn)
		case "+", "=":
			return m.press(buttonVolumeUp)
		case "-", "_":
			return m.press(buttonVolumeDown)
		case "m", "M":
			return m.press(buttonMute)
		case "s", "S":
			return m.press(buttonStatus)
		}
	}

	return m, nil
}

// View renders the remote control screen
func (m RemoteModel) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("Viera CLI - TV Remote Control"))

	header := successStyle.Render("📺 "+m.name) + " " + helpStyle.Render(m.address)
	if m.testMode {
		header += " " + mutedStyle.Render("(Test)")
	}
	sections = append(sections, header)

	sections = append(sections, m.renderStatusLine())
	sections = append(sections, m.renderButtons())

	if result := m.renderLastResult(); result != "" {
		sections = append(sections, result)
	}

	if m.debugMode || m.testMode {
		if logs := m.renderLogDisplay(); logs != "" {
			sections = append(sections, logs)
		}
	}

	sections = append(sections, helpStyle.Render("P: Power off • O: Power on • +/-: Volume • M: Mute • S: Status • q: Disconnect"))

	return strings.Join(sections, "\n\n")
}

func (m RemoteModel) renderStatusLine() string {
	power := errorStyle.Render("● OFF")
	if m.tv.LastActive() {
		power = successStyle.Render("● ON")
	}

	line := "Power: " + power
	if m.tv.Muted() {
		line += "   " + mutedStyle.Render("🔇 muted")
	}
	if m.inFlight > 0 {
		line += "   " + m.spinner.View() + " sending"
	}
	return line
}

func (m RemoteModel) renderButtons() string {
	style := func(active bool) lipgloss.Style {
		if active {
			return remoteButtonActiveStyle
		}
		return remoteButtonStyle
	}

	switchButton := func(s accessory.Switch) string {
		return style(m.tv.SwitchState(s)).Render(s.Name())
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		remoteButtonStyle.Render(" PWR "),
		switchButton(accessory.SwitchVolumeUp),
		switchButton(accessory.SwitchVolumeDown),
		switchButton(accessory.SwitchMute),
	)
}

func (m RemoteModel) renderLastResult() string {
	if m.lastAt.IsZero() {
		return ""
	}
	if m.lastErr != nil {
		if viera.IsUnsupported(m.lastErr) {
			return mutedStyle.Render("✗ Not Supported: the TV cannot be powered on over the network")
		}
		return errorStyle.Render(fmt.Sprintf("✗ %s: %v", m.lastButton, m.lastErr))
	}
	return successStyle.Render("✓ " + m.lastButton.String())
}

func (m RemoteModel) renderLogDisplay() string {
	if len(m.logBuffer) == 0 {
		return ""
	}

	start := 0
	if len(m.logBuffer) > maxLogLines {
		start = len(m.logBuffer) - maxLogLines
	}

	lines := []string{helpStyle.Render("─── LOGS ───")}
	for _, entry := range m.logBuffer[start:] {
		levelStyle := successStyle
		if entry.Level == "ERR" {
			levelStyle = errorStyle
		}
		lines = append(lines, fmt.Sprintf("%s [%s] %s",
			entry.Timestamp.Format("15:04:05"),
			levelStyle.Render(entry.Level),
			entry.Message))
	}

	return strings.Join(lines, "\n")
}

// press runs the action for button off the UI goroutine
func (m RemoteModel) press(button remoteButton) (RemoteModel, tea.Cmd) {
	tv := m.tv
	m.inFlight++

	action := func() tea.Msg {
		start := time.Now()
		ctx := context.Background()

		var on bool
		var err error
		switch button {
		case buttonPowerOff:
			err = tv.SetActive(ctx, false)
		case buttonPowerOn:
			err = tv.SetActive(ctx, true)
		case buttonVolumeUp:
			err = tv.PressSwitch(ctx, accessory.SwitchVolumeUp)
		case buttonVolumeDown:
			err = tv.PressSwitch(ctx, accessory.SwitchVolumeDown)
		case buttonMute:
			err = tv.PressSwitch(ctx, accessory.SwitchMute)
		case buttonStatus:
			on, err = tv.Active(ctx)
		}

		return actionDoneMsg{button: button, on: on, err: err, elapsed: time.Since(start)}
	}

	return m, tea.Batch(action, m.spinner.Tick)
}

func (m RemoteModel) waitForEvent() tea.Cmd {
	events, done := m.events, m.done
	return func() tea.Msg {
		select {
		case e := <-events:
			return tvEventMsg(e)
		case <-done:
			return nil
		}
	}
}

func (m *RemoteModel) logAction(msg actionDoneMsg) {
	entry := LogEntry{Timestamp: time.Now(), Level: "INF"}
	switch {
	case msg.err != nil:
		entry.Level = "ERR"
		entry.Message = fmt.Sprintf("%s failed: %v", msg.button, msg.err)
	case msg.button == buttonStatus:
		state := "off"
		if msg.on {
			state = "on"
		}
		entry.Message = "power status: " + state
	default:
		entry.Message = fmt.Sprintf("%s sent in %s", msg.button, msg.elapsed.Round(time.Millisecond))
	}

	m.logBuffer = append(m.logBuffer, entry)
	if len(m.logBuffer) > 20 {
		m.logBuffer = m.logBuffer[1:]
	}

	log := logger.New()
	log.Info().
		Str("action", msg.button.String()).
		Bool("success", msg.err == nil).
		Dur("elapsed", msg.elapsed).
		Msg("Remote button pressed")
}
