package viera

import (
	"context"
	"errors"
	"fmt"

	"viera/internal"
	"viera/internal/device"
)

// Remote implements the Device interface for Panasonic Viera televisions
type Remote struct {
	client *Client
	info   device.DeviceInfo
}

// NewRemote creates a new Remote device
func NewRemote(id, name, host string, options *internal.FnModeOptions) *Remote {
	return NewRemoteForClient(id, NewClient(name, host, options))
}

// NewRemoteForClient wraps an existing client
func NewRemoteForClient(id string, client *Client) *Remote {
	return &Remote{
		client: client,
		info: device.DeviceInfo{
			ID:           id,
			Name:         client.Name(),
			Type:         "viera_tv",
			Manufacturer: Manufacturer,
			Model:        "Viera",
			Address:      client.Endpoint().Host,
			Capabilities: []string{
				"power_off",
				"power_status",
				"volume_step",
				"mute_toggle",
			},
		},
	}
}

// Client returns the underlying protocol client
func (r *Remote) Client() *Client {
	return r.client
}

// GetDeviceInfo returns information about this Viera device
func (r *Remote) GetDeviceInfo() device.DeviceInfo {
	return r.info
}

// Process handles JSON action requests and routes them to appropriate methods
func (r *Remote) Process(ctx context.Context, actionJSON []byte) (*device.ActionResponse, error) {
	request, err := device.ParseActionRequest(actionJSON)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	switch request.Type {
	case device.ActionTypeRemote:
		return r.processRemoteAction(ctx, request), nil
	case device.ActionTypeControl:
		return r.processControlAction(ctx, request), nil
	default:
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported action type: %s", request.Type),
		}, nil
	}
}

// processRemoteAction handles remote control actions
func (r *Remote) processRemoteAction(ctx context.Context, request *device.ActionRequest) *device.ActionResponse {
	action := device.RemoteAction(request.Action)

	switch action {
	case device.RemoteActionPowerOn:
		err := r.client.SendPower(ctx, true)
		return &device.ActionResponse{
			Success: false,
			Error:   err.Error(),
		}
	case device.RemoteActionPower, device.RemoteActionPowerOff:
		return r.commandResponse(ctx, request.Action, PowerToggle)
	}

	cmd, exists := remoteActionMap[action]
	if !exists {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported remote action: %s", request.Action),
		}
	}

	return r.commandResponse(ctx, request.Action, cmd)
}

func (r *Remote) commandResponse(ctx context.Context, action string, cmd Command) *device.ActionResponse {
	outcome, err := r.client.Send(ctx, cmd)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("remote request failed: %v", err),
		}
	}

	response := &device.ActionResponse{
		Success: true,
		Data: map[string]interface{}{
			"action":  action,
			"outcome": outcome.String(),
		},
	}

	switch {
	case outcome == TimedOut:
		response.DeviceState = device.StateOff
	case cmd == PowerToggle:
		// the toggle was accepted, so the set is on its way off
		response.DeviceState = device.StateOff
	default:
		response.DeviceState = device.StateOn
	}

	return response
}

// processControlAction handles status queries
func (r *Remote) processControlAction(ctx context.Context, request *device.ActionRequest) *device.ActionResponse {
	if device.ControlAction(request.Action) != device.ControlActionPowerStatus {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("unsupported control action: %s", request.Action),
		}
	}

	on, err := r.client.ProbeStatus(ctx)
	if err != nil {
		return &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("status request failed: %v", err),
		}
	}

	state := device.StateOff
	if on {
		state = device.StateOn
	}

	return &device.ActionResponse{
		Success:     true,
		DeviceState: state,
		Data: map[string]interface{}{
			"power": state,
		},
	}
}

// IsUnsupported reports whether err is the local power-on refusal
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// remoteActionMap maps RemoteAction to Command
var remoteActionMap = map[device.RemoteAction]Command{
	device.RemoteActionVolumeUp:   VolumeUp,
	device.RemoteActionVolumeDown: VolumeDown,
	device.RemoteActionMute:       Mute,
}

// AvailableRemoteActions lists the remote actions understood by Process
var AvailableRemoteActions = []string{
	"power", "power_off", "power_on",
	"volume_up", "volume_down", "mute",
}

// AvailableControlActions lists the control actions understood by Process
var AvailableControlActions = []string{
	"power_status",
}
