package homekit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brutella/hc/characteristic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal/accessory"
	"viera/internal/viera"
)

type stubRemote struct {
	mu       sync.Mutex
	keys     []string
	on       bool
	probeErr error
}

func (s *stubRemote) add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
}

func (s *stubRemote) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *stubRemote) ProbeStatus(context.Context) (bool, error) { return s.on, s.probeErr }

func (s *stubRemote) SendPower(_ context.Context, turnOn bool) error {
	if turnOn {
		return viera.ErrUnsupportedOperation
	}
	s.add("power")
	return nil
}

func (s *stubRemote) SendVolumeUp(context.Context) error   { s.add("volume_up"); return nil }
func (s *stubRemote) SendVolumeDown(context.Context) error { s.add("volume_down"); return nil }
func (s *stubRemote) SendMute(context.Context) error       { s.add("mute"); return nil }

func newTestAccessory(remote *stubRemote) (*TelevisionAccessory, *accessory.Television) {
	model := accessory.NewTelevision("Living Room TV", remote, accessory.WithResetDelay(20*time.Millisecond))
	return NewTelevisionAccessory(10, model), model
}

func TestAccessories(t *testing.T) {
	a, _ := newTestAccessory(&stubRemote{})
	accs := a.Accessories()

	require.Len(t, accs, 4)
	assert.Equal(t, uint64(10), accs[0].ID)
	assert.Equal(t, "Living Room TV", accs[0].Info.Name.GetValue())
	assert.Equal(t, "Panasonic", accs[0].Info.Manufacturer.GetValue())
	assert.Equal(t, "1) Volume Up", accs[1].Info.Name.GetValue())
	assert.Equal(t, "2) Volume Down", accs[2].Info.Name.GetValue())
	assert.Equal(t, "3) Mute", accs[3].Info.Name.GetValue())
}

func TestGetActive(t *testing.T) {
	remote := &stubRemote{on: true}
	a, _ := newTestAccessory(remote)

	assert.Equal(t, characteristic.ActiveActive, a.getActive())
	assert.Equal(t, characteristic.ActiveActive, a.tv.Television.Active.GetValue())

	remote.probeErr = errors.New("refused")
	assert.Equal(t, characteristic.ActiveActive, a.getActive())
}

func TestSetActive(t *testing.T) {
	remote := &stubRemote{on: true}
	a, model := newTestAccessory(remote)
	model.Observe(true)

	a.setActive(characteristic.ActiveActive)
	assert.Empty(t, remote.sent())
	assert.Equal(t, characteristic.ActiveActive, a.tv.Television.Active.GetValue())

	a.setActive(characteristic.ActiveInactive)
	assert.Equal(t, []string{"power"}, remote.sent())
	assert.False(t, model.LastActive())

	remote.on = false
	assert.Equal(t, characteristic.ActiveInactive, a.tv.Television.Active.GetValue())
}

func TestSetVolumeAndMute(t *testing.T) {
	remote := &stubRemote{}
	a, _ := newTestAccessory(remote)

	a.setVolume(characteristic.VolumeSelectorIncrement)
	a.setVolume(characteristic.VolumeSelectorDecrement)
	a.setMute(true)

	assert.Equal(t, []string{"volume_up", "volume_down", "mute"}, remote.sent())
	assert.True(t, a.tv.Speaker.Mute.GetValue())
}

func TestSwitchSpringsBack(t *testing.T) {
	remote := &stubRemote{}
	a, model := newTestAccessory(remote)
	defer model.Close()

	a.pressSwitch(accessory.SwitchVolumeUp, false)
	assert.Empty(t, remote.sent())

	a.pressSwitch(accessory.SwitchVolumeUp, true)

	assert.Eventually(t, func() bool {
		return len(remote.sent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return !model.SwitchState(accessory.SwitchVolumeUp)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"volume_up"}, remote.sent())
}
