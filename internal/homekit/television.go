package homekit

import (
	"context"

	hcaccessory "github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	"github.com/rs/zerolog"
	"viera/internal/accessory"
	"viera/internal/logger"
	"viera/internal/viera"
)

// TelevisionAccessory mirrors one accessory.Television as HomeKit services:
// a television with a linked speaker plus three switches.
type TelevisionAccessory struct {
	model    *accessory.Television
	tv       *hcaccessory.Television
	volume   *characteristic.VolumeSelector
	switches map[accessory.Switch]*hcaccessory.Switch
	logger   zerolog.Logger
}

// NewTelevisionAccessory builds the HomeKit side of model. id seeds the
// accessory IDs so they stay stable across restarts.
func NewTelevisionAccessory(id uint64, model *accessory.Television) *TelevisionAccessory {
	a := &TelevisionAccessory{
		model:    model,
		switches: make(map[accessory.Switch]*hcaccessory.Switch, len(accessory.Switches)),
		logger:   logger.WithComponent("homekit").With().Str("device", model.Name()).Logger(),
	}

	a.tv = hcaccessory.NewTelevision(hcaccessory.Info{
		ID:           id,
		Name:         model.Name(),
		Manufacturer: viera.Manufacturer,
		Model:        "Viera",
	})
	a.tv.Television.ConfiguredName.SetValue(model.Name())
	a.tv.Television.Active.OnValueRemoteGet(a.getActive)
	a.tv.Television.Active.OnValueRemoteUpdate(a.setActive)

	a.tv.Speaker.Mute.OnValueRemoteUpdate(a.setMute)

	a.volume = characteristic.NewVolumeSelector()
	a.volume.OnValueRemoteUpdate(a.setVolume)
	a.tv.Speaker.AddCharacteristic(a.volume.Characteristic)

	for i, s := range accessory.Switches {
		sw := hcaccessory.NewSwitch(hcaccessory.Info{
			ID:           id + uint64(i) + 1,
			Name:         s.Name(),
			Manufacturer: viera.Manufacturer,
		})
		sw.Switch.On.SetValue(false)

		pressed := s
		sw.Switch.On.OnValueRemoteUpdate(func(on bool) {
			a.pressSwitch(pressed, on)
		})
		a.switches[s] = sw
	}

	model.AddObserver(a.mirror)
	return a
}

// Accessories returns the HomeKit accessories to publish
func (a *TelevisionAccessory) Accessories() []*hcaccessory.Accessory {
	accs := []*hcaccessory.Accessory{a.tv.Accessory}
	for _, s := range accessory.Switches {
		accs = append(accs, a.switches[s].Accessory)
	}
	return accs
}

// getActive cannot report errors to HomeKit, so failures fall back to the
// last known state.
func (a *TelevisionAccessory) getActive() int {
	on, err := a.model.Active(context.Background())
	if err != nil {
		a.logger.Warn().Err(err).Msg("Power status unavailable, keeping last known state")
	}
	return activeValue(on)
}

func (a *TelevisionAccessory) setActive(value int) {
	err := a.model.SetActive(context.Background(), value == characteristic.ActiveActive)
	if err != nil {
		a.tv.Television.Active.SetValue(activeValue(a.model.LastActive()))
	}
}

func (a *TelevisionAccessory) setMute(bool) {
	if err := a.model.ToggleMute(context.Background()); err != nil {
		a.logger.Error().Err(err).Msg("Mute failed")
		a.tv.Speaker.Mute.SetValue(a.model.Muted())
	}
}

func (a *TelevisionAccessory) setVolume(value int) {
	increment := value == characteristic.VolumeSelectorIncrement
	if err := a.model.SetVolume(context.Background(), increment); err != nil {
		a.logger.Error().Err(err).Bool("increment", increment).Msg("Volume change failed")
	}
}

func (a *TelevisionAccessory) pressSwitch(s accessory.Switch, on bool) {
	if !on {
		return
	}
	go a.model.PressSwitch(context.Background(), s)
}

func (a *TelevisionAccessory) mirror(event accessory.Event) {
	switch event.Kind {
	case accessory.EventActive:
		a.tv.Television.Active.SetValue(activeValue(event.On))
	case accessory.EventMute:
		a.tv.Speaker.Mute.SetValue(event.On)
	case accessory.EventSwitch:
		if sw, ok := a.switches[event.Switch]; ok {
			sw.Switch.On.SetValue(event.On)
		}
	}
}

func activeValue(on bool) int {
	if on {
		return characteristic.ActiveActive
	}
	return characteristic.ActiveInactive
}
