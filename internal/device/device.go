package device

import (
	"context"
	"encoding/json"
	"fmt"
)

// Device represents a generic device that can process commands
type Device interface {
	// Process handles a JSON-encoded action and executes the corresponding operation
	Process(ctx context.Context, actionJSON []byte) (*ActionResponse, error)

	// GetDeviceInfo returns basic information about the device
	GetDeviceInfo() DeviceInfo
}

// DeviceInfo contains basic information about a device
type DeviceInfo struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Address      string   `json:"address"`
	Capabilities []string `json:"capabilities"`
}

// ActionType represents the type of action to perform
type ActionType string

const (
	ActionTypeRemote  ActionType = "remote"
	ActionTypeControl ActionType = "control"
)

// DeviceState values reported alongside an action result
const (
	StateOn      = "on"
	StateOff     = "off"
	StateUnknown = ""
)

// ActionRequest represents a JSON action request
type ActionRequest struct {
	Type       ActionType             `json:"type"`       // "remote" or "control"
	Action     string                 `json:"action"`     // specific action name
	Parameters map[string]interface{} `json:"parameters"` // optional parameters
}

// ActionResponse represents the response from processing an action
type ActionResponse struct {
	Success     bool        `json:"success"`
	DeviceState string      `json:"device_state,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// RemoteAction represents available remote control actions
type RemoteAction string

const (
	RemoteActionPower      RemoteAction = "power"
	RemoteActionPowerOn    RemoteAction = "power_on"
	RemoteActionPowerOff   RemoteAction = "power_off"
	RemoteActionVolumeUp   RemoteAction = "volume_up"
	RemoteActionVolumeDown RemoteAction = "volume_down"
	RemoteActionMute       RemoteAction = "mute"
)

// ControlAction represents available control API actions
type ControlAction string

const (
	ControlActionPowerStatus ControlAction = "power_status"
)

// ParseActionRequest parses JSON input into ActionRequest
func ParseActionRequest(actionJSON []byte) (*ActionRequest, error) {
	var request ActionRequest
	if err := json.Unmarshal(actionJSON, &request); err != nil {
		return nil, fmt.Errorf("failed to parse action request: %w", err)
	}

	// Validate required fields
	if request.Type == "" {
		return nil, fmt.Errorf("action type is required")
	}

	if request.Action == "" {
		return nil, fmt.Errorf("action is required")
	}

	return &request, nil
}

// NewActionJSON builds the JSON form of an action request
func NewActionJSON(actionType ActionType, action string) ([]byte, error) {
	return json.Marshal(ActionRequest{
		Type:   actionType,
		Action: action,
	})
}
