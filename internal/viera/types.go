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

package viera

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// KeyEvent is a remote control button identifier of the Viera protocol
type KeyEvent string

// Command is one of the remote control actions the client can send
type Command int

const (
	PowerToggle Command = iota
	VolumeUp
	VolumeDown
	Mute
)

// Commands lists every supported command
var Commands = []Command{PowerToggle, VolumeUp, VolumeDown, Mute}

var commandKeys = map[Command]KeyEvent{
	PowerToggle: KeyPower,
	VolumeUp:    KeyVolumeUp,
	VolumeDown:  KeyVolumeDown,
	Mute:        KeyMute,
}

var commandNames = map[Command]string{
	PowerToggle: "power",
	VolumeUp:    "volume_up",
	VolumeDown:  "volume_down",
	Mute:        "mute",
}

// KeyEvent returns the protocol identifier for the command
func (c Command) KeyEvent() KeyEvent {
	return commandKeys[c]
}

// Valid reports whether c is one of the supported commands
func (c Command) Valid() bool {
	_, ok := commandKeys[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Command(" + strconv.Itoa(int(c)) + ")"
}

// ParseCommand maps an action name like "volume_up" to its Command
func ParseCommand(name string) (Command, error) {
	for cmd, n := range commandNames {
		if n == name {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("unknown command: %s", name)
}

// Endpoint identifies the control service of one television
type Endpoint struct {
	Host string
	Port int
}

// NewEndpoint returns the control endpoint for host on the fixed Viera port
func NewEndpoint(host string) Endpoint {
	return Endpoint{Host: host, Port: ControlPort}
}

// Address returns host:port
func (e Endpoint) Address() string {
	port := e.Port
	if port == 0 {
		port = ControlPort
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// URL returns the control URL for path
func (e Endpoint) URL(path string) string {
	return "http://" + e.Address() + path
}

// Request is a fully encoded wire request
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Outcome classifies how a single dispatch ended
type Outcome int

const (
	// Delivered means a response arrived and its body was read to the end
	Delivered Outcome = iota
	// TimedOut means the deadline fired before the response completed
	TimedOut
	// TransportFailed means the connection failed before the deadline fired
	TransportFailed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TimedOut:
		return "timed_out"
	case TransportFailed:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one dispatch
type Result struct {
	Outcome    Outcome
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

// PowerState is the power state inferred from a status probe
type PowerState int

const (
	PowerOff PowerState = iota
	PowerOn
)

func (p PowerState) String() string {
	if p == PowerOn {
		return "on"
	}
	return "off"
}

// On reports whether the state is PowerOn
func (p PowerState) On() bool {
	return p == PowerOn
}

// ErrUnsupportedOperation is returned when asked to power the television on.
// The protocol only offers a power toggle, so the request is refused locally.
var ErrUnsupportedOperation = errors.New("operation not supported: power on via toggle")

// TransportError is a connection level failure that happened before the deadline
type TransportError struct {
	Op    string
	Addr  string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// StatusResult is delivered by ProbeStatusAsync
type StatusResult struct {
	On  bool
	Err error
}

// CommandResult is delivered by SendAsync
type CommandResult struct {
	Command Command
	Outcome Outcome
	Err     error
}
