package cli

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal"
	"viera/internal/accessory"
	"viera/internal/viera"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runUntil executes cmd, expanding batches, and returns the first message of type T
func runUntil[T any](t *testing.T, cmd tea.Cmd) T {
	t.Helper()

	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case T:
			return msg
		}
	}

	var zero T
	t.Fatalf("no %T produced", zero)
	return zero
}

func newTestRemoteModel(t *testing.T) RemoteModel {
	t.Helper()

	client := viera.NewClient("Test TV", "192.0.2.10", internal.NewModeOptions(internal.WithTest(true)))
	m := NewRemoteModel(client, true, false, true)
	t.Cleanup(m.Close)
	return m
}

func TestParseHostAddress(t *testing.T) {
	tests := []struct {
		address string
		ok      bool
		port    int
	}{
		{"192.168.1.100", true, viera.ControlPort},
		{"192.168.1.100:55001", true, 55001},
		{"tv.local", true, viera.ControlPort},
		{"", false, 0},
		{"bad host", false, 0},
		{"10.0.0.1:0", false, 0},
		{"10.0.0.1:http", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			endpoint, ok := parseHostAddress(tt.address)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.port, endpoint.Port)
			}
		})
	}
}

func TestSetupConnect(t *testing.T) {
	m := NewSetupModel(false, true, "")
	m.inputs[setupFieldHost].SetValue("192.0.2.10")
	m.focus(setupFieldConnect)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.connecting)

	m, _ = m.Update(runUntil[connectedMsg](t, cmd))
	require.True(t, m.IsConnected())
	assert.True(t, m.PoweredOn())
	assert.Equal(t, "192.0.2.10", m.Client().Name())
}

func TestSetupRejectsBadHost(t *testing.T) {
	m := NewSetupModel(false, true, "")
	m.inputs[setupFieldHost].SetValue("not a host")
	m.focus(setupFieldConnect)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.IsConnected())
	assert.Contains(t, m.View(), "invalid host address")
}

func TestRemoteMuteFlashesSwitch(t *testing.T) {
	m := newTestRemoteModel(t)

	m, cmd := m.Update(key("m"))
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.inFlight)

	done := runUntil[actionDoneMsg](t, cmd)
	require.NoError(t, done.err)
	assert.Equal(t, buttonMute, done.button)

	m, _ = m.Update(done)
	assert.Equal(t, 0, m.inFlight)
	assert.True(t, m.tv.Muted())
	assert.Contains(t, m.View(), "muted")

	assert.Eventually(t, func() bool {
		return !m.tv.SwitchState(accessory.SwitchMute)
	}, time.Second, 10*time.Millisecond)
}

func TestRemotePowerOnNotSupported(t *testing.T) {
	m := newTestRemoteModel(t)

	m, cmd := m.Update(key("o"))
	done := runUntil[actionDoneMsg](t, cmd)
	assert.ErrorIs(t, done.err, viera.ErrUnsupportedOperation)

	m, _ = m.Update(done)
	assert.Contains(t, m.View(), "Not Supported")
	assert.True(t, m.tv.LastActive(), "refused power on leaves the state alone")
}

func TestRemotePowerOff(t *testing.T) {
	m := newTestRemoteModel(t)

	m, cmd := m.Update(key("p"))
	done := runUntil[actionDoneMsg](t, cmd)
	require.NoError(t, done.err)

	m, _ = m.Update(done)
	assert.False(t, m.tv.LastActive())
	assert.Contains(t, m.View(), "OFF")
}

func TestRemoteStatus(t *testing.T) {
	m := newTestRemoteModel(t)
	m.tv.Observe(false)

	m, cmd := m.Update(key("s"))
	done := runUntil[actionDoneMsg](t, cmd)
	require.NoError(t, done.err)
	assert.True(t, done.on)

	m, _ = m.Update(done)
	assert.True(t, m.tv.LastActive())
	require.Len(t, m.logBuffer, 1)
	assert.Equal(t, "power status: on", m.logBuffer[0].Message)
}

func TestRemoteEventsReachUpdateLoop(t *testing.T) {
	m := newTestRemoteModel(t)

	// connecting as on already produced one event
	first, ok := m.Init()().(tvEventMsg)
	require.True(t, ok)
	assert.Equal(t, accessory.EventActive, first.Kind)
	assert.True(t, first.On)

	m.tv.Observe(false)

	m, cmd := m.Update(first)
	second, ok := cmd().(tvEventMsg)
	require.True(t, ok)
	assert.False(t, second.On)
}
