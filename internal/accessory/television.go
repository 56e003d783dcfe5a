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

// Package accessory models a television as a smart-home accessory: an Active
// power state, a mute indicator and three momentary switches that spring back
// to off shortly after every press.
package accessory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"viera/internal/logger"
	"viera/internal/viera"
)

// ButtonResetDelay is how long a momentary switch stays on after a press
const ButtonResetDelay = 100 * time.Millisecond

// Remote is the subset of the protocol client an accessory drives
type Remote interface {
	ProbeStatus(ctx context.Context) (bool, error)
	SendPower(ctx context.Context, turnOn bool) error
	SendVolumeUp(ctx context.Context) error
	SendVolumeDown(ctx context.Context) error
	SendMute(ctx context.Context) error
}

// Switch identifies one of the momentary switches
type Switch int

const (
	SwitchVolumeUp Switch = iota
	SwitchVolumeDown
	SwitchMute
)

// Switches lists the momentary switches in display order
var Switches = []Switch{SwitchVolumeUp, SwitchVolumeDown, SwitchMute}

var switchNames = map[Switch]string{
	SwitchVolumeUp:   "1) Volume Up",
	SwitchVolumeDown: "2) Volume Down",
	SwitchMute:       "3) Mute",
}

// Name returns the label shown by the host
func (s Switch) Name() string {
	if name, ok := switchNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Switch(%d)", int(s))
}

func (s Switch) valid() bool {
	_, ok := switchNames[s]
	return ok
}

// EventKind tells observers which part of the accessory changed
type EventKind int

const (
	EventActive EventKind = iota
	EventMute
	EventSwitch
)

// Event describes a single state change
type Event struct {
	Kind   EventKind
	Switch Switch
	On     bool
}

// Observer receives state changes. It is called without locks held.
type Observer func(Event)

// Option configures a Television
type Option func(*Television)

// WithResetDelay overrides ButtonResetDelay
func WithResetDelay(delay time.Duration) Option {
	return func(t *Television) {
		t.resetDelay = delay
	}
}

// WithObserver registers an observer at construction time
func WithObserver(observer Observer) Option {
	return func(t *Television) {
		t.observers = append(t.observers, observer)
	}
}

// Television is the accessory state for one set
type Television struct {
	name       string
	remote     Remote
	resetDelay time.Duration
	logger     zerolog.Logger

	mu         sync.Mutex
	active     bool
	muted      bool
	switches   map[Switch]bool
	observers  []Observer
	resetTimer *time.Timer
}

// NewTelevision creates the accessory for remote
func NewTelevision(name string, remote Remote, options ...Option) *Television {
	t := &Television{
		name:       name,
		remote:     remote,
		resetDelay: ButtonResetDelay,
		switches:   make(map[Switch]bool, len(Switches)),
		logger:     logger.WithComponent("accessory").With().Str("device", name).Logger(),
	}

	for _, option := range options {
		option(t)
	}

	return t
}

// Name returns the accessory display name
func (t *Television) Name() string {
	return t.name
}

// AddObserver registers an observer for state changes
func (t *Television) AddObserver(observer Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, observer)
}

// Active probes the set and returns its power state. On error the last
// known state is returned alongside the error.
func (t *Television) Active(ctx context.Context) (bool, error) {
	on, err := t.remote.ProbeStatus(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Power status query failed")
		return t.LastActive(), err
	}

	t.setActive(on)
	return on, nil
}

// LastActive returns the last known power state without touching the network
func (t *Television) LastActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Observe records a power state learned elsewhere, e.g. by a poller
func (t *Television) Observe(on bool) {
	t.setActive(on)
}

// SetActive asks the set to change its power state. Only switching off is
// possible; a request to switch on returns viera.ErrUnsupportedOperation and
// leaves the state unchanged.
func (t *Television) SetActive(ctx context.Context, on bool) error {
	if err := t.remote.SendPower(ctx, on); err != nil {
		if viera.IsUnsupported(err) {
			t.logger.Info().Msg("Not Supported")
		} else {
			t.logger.Error().Err(err).Msg("Power off failed")
		}
		return err
	}

	t.setActive(false)
	return nil
}

// SetVolume steps the volume up or down
func (t *Television) SetVolume(ctx context.Context, increment bool) error {
	if increment {
		return t.remote.SendVolumeUp(ctx)
	}
	return t.remote.SendVolumeDown(ctx)
}

// ToggleMute sends the mute key and flips the mute indicator
func (t *Television) ToggleMute(ctx context.Context) error {
	if err := t.remote.SendMute(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.muted = !t.muted
	muted := t.muted
	observers := t.observers
	t.mu.Unlock()

	notify(observers, Event{Kind: EventMute, On: muted})
	return nil
}

// Muted returns the mute indicator
func (t *Television) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// SwitchState returns whether a momentary switch currently reads on
func (t *Television) SwitchState(s Switch) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.switches[s]
}

// PressSwitch turns s on, dispatches its key and schedules every switch back
// to off after the reset delay, whatever the outcome of the dispatch.
func (t *Television) PressSwitch(ctx context.Context, s Switch) error {
	if !s.valid() {
		return fmt.Errorf("unknown switch: %d", int(s))
	}

	t.setSwitch(s, true)
	defer t.scheduleReset()

	var err error
	switch s {
	case SwitchVolumeUp:
		err = t.remote.SendVolumeUp(ctx)
	case SwitchVolumeDown:
		err = t.remote.SendVolumeDown(ctx)
	case SwitchMute:
		err = t.ToggleMute(ctx)
	}

	if err != nil {
		t.logger.Error().Err(err).Str("switch", s.Name()).Msg("Switch press failed")
	}
	return err
}

// Close stops a pending switch reset
func (t *Television) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resetTimer != nil {
		t.resetTimer.Stop()
		t.resetTimer = nil
	}
}

func (t *Television) setActive(on bool) {
	t.mu.Lock()
	changed := t.active != on
	t.active = on
	observers := t.observers
	t.mu.Unlock()

	if changed {
		notify(observers, Event{Kind: EventActive, On: on})
	}
}

func (t *Television) setSwitch(s Switch, on bool) {
	t.mu.Lock()
	changed := t.switches[s] != on
	t.switches[s] = on
	observers := t.observers
	t.mu.Unlock()

	if changed {
		notify(observers, Event{Kind: EventSwitch, Switch: s, On: on})
	}
}

func (t *Television) scheduleReset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resetTimer != nil {
		t.resetTimer.Stop()
	}
	t.resetTimer = time.AfterFunc(t.resetDelay, t.resetSwitches)
}

func (t *Television) resetSwitches() {
	for _, s := range Switches {
		t.setSwitch(s, false)
	}
}

func notify(observers []Observer, event Event) {
	for _, observer := range observers {
		observer(event)
	}
}
