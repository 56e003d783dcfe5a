package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"viera/internal/accessory"
	"viera/internal/device"
	"viera/internal/logger"
	"viera/internal/metrics"
	"viera/internal/viera"
)

// ErrDeviceNotFound is returned for unknown device IDs
var ErrDeviceNotFound = errors.New("device not found")

// StateListener is told when a device's power state changes
type StateListener func(deviceID, state string)

type managedDevice struct {
	config DeviceConfig
	remote *viera.Remote
	tv     *accessory.Television
	state  string
}

// DeviceManager manages the lifecycle and access to devices
type DeviceManager struct {
	devices    map[string]*managedDevice
	config     *Config
	mutex      sync.RWMutex
	logger     zerolog.Logger
	nonceCache *NonceCache
	history    *History
	listeners  []StateListener
	debug      bool
	testMode   bool
}

// NewDeviceManager creates a new device manager. history may be nil.
func NewDeviceManager(config *Config, history *History) *DeviceManager {
	return &DeviceManager{
		devices:    make(map[string]*managedDevice),
		config:     config,
		logger:     logger.WithComponent("devices"),
		nonceCache: NewNonceCache(defaultNoncesPerDevice, defaultNonceExpiration),
		history:    history,
	}
}

// Initialize creates a remote for every configured television
func (dm *DeviceManager) Initialize(debug, testMode bool) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.debug = debug
	dm.testMode = testMode

	dm.logger.Info().
		Int("device_count", len(dm.config.Devices)).
		Msg("Initializing devices")

	for _, deviceConfig := range dm.config.Devices {
		if _, exists := dm.devices[deviceConfig.ID]; exists {
			return fmt.Errorf("duplicate device ID: %s", deviceConfig.ID)
		}

		dm.devices[deviceConfig.ID] = dm.createDevice(deviceConfig)
		dm.logger.Info().
			Str("device_id", deviceConfig.ID).
			Str("device_host", deviceConfig.Host).
			Msg("Device initialized")
	}

	return nil
}

func (dm *DeviceManager) createDevice(config DeviceConfig) *managedDevice {
	client := viera.NewClientForEndpoint(config.Name, config.Endpoint(), config.ModeOptions(dm.debug, dm.testMode))
	client.SetObserver(metrics.DispatchObserver(config.ID))

	return &managedDevice{
		config: config,
		remote: viera.NewRemoteForClient(config.ID, client),
		tv:     accessory.NewTelevision(config.Name, client),
		state:  device.StateUnknown,
	}
}

func (dm *DeviceManager) lookup(id string) (*managedDevice, error) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	managed, exists := dm.devices[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return managed, nil
}

// GetDevice returns a device by ID
func (dm *DeviceManager) GetDevice(id string) (device.Device, error) {
	managed, err := dm.lookup(id)
	if err != nil {
		return nil, err
	}
	return managed.remote, nil
}

// Television returns the accessory model of a device
func (dm *DeviceManager) Television(id string) (*accessory.Television, error) {
	managed, err := dm.lookup(id)
	if err != nil {
		return nil, err
	}
	return managed.tv, nil
}

// DeviceIDs returns the managed device IDs in sorted order
func (dm *DeviceManager) DeviceIDs() []string {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	ids := make([]string, 0, len(dm.devices))
	for id := range dm.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetAllDeviceInfo returns information for all devices, sorted by ID
func (dm *DeviceManager) GetAllDeviceInfo() []device.DeviceInfo {
	ids := dm.DeviceIDs()

	infos := make([]device.DeviceInfo, 0, len(ids))
	for _, id := range ids {
		if managed, err := dm.lookup(id); err == nil {
			infos = append(infos, managed.remote.GetDeviceInfo())
		}
	}
	return infos
}

// State returns the last known power state of a device
func (dm *DeviceManager) State(id string) (string, error) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	managed, exists := dm.devices[id]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return managed.state, nil
}

// OnStateChange registers a listener for power state changes
func (dm *DeviceManager) OnStateChange(listener StateListener) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	dm.listeners = append(dm.listeners, listener)
}

// ProcessDeviceAction runs an action against a device and records the result
func (dm *DeviceManager) ProcessDeviceAction(ctx context.Context, deviceID string, actionJSON []byte) (*device.ActionResponse, error) {
	managed, err := dm.lookup(deviceID)
	if err != nil {
		return nil, err
	}

	action := "invalid"
	if request, err := device.ParseActionRequest(actionJSON); err == nil {
		action = request.Action
	}

	dm.logger.Debug().
		Str("device_id", deviceID).
		Bytes("action", actionJSON).
		Msg("Processing device action")

	start := time.Now()
	response, err := managed.remote.Process(ctx, actionJSON)
	if err != nil {
		dm.logger.Error().
			Str("device_id", deviceID).
			Err(err).
			Msg("Device action processing failed")
		response = &device.ActionResponse{
			Success: false,
			Error:   fmt.Sprintf("action processing failed: %v", err),
		}
	}
	elapsed := time.Since(start)

	dm.logger.Info().
		Str("device_id", deviceID).
		Str("action", action).
		Bool("success", response.Success).
		Str("device_state", response.DeviceState).
		Dur("elapsed", elapsed).
		Msg("Device action processed")

	metrics.IncAction(deviceID, action, response.Success)
	dm.recordHistory(ctx, deviceID, action, response, elapsed)

	if response.Success && response.DeviceState != device.StateUnknown {
		dm.updateState(deviceID, response.DeviceState)
	}

	return response, nil
}

// ProcessDeviceActionWithNonce processes an action, replaying the stored
// response when the nonce was already used for this device
func (dm *DeviceManager) ProcessDeviceActionWithNonce(ctx context.Context, deviceID, nonce string, actionJSON []byte) (*device.ActionResponse, error) {
	if nonce != "" && !ValidateNonce(nonce) {
		dm.logger.Warn().
			Str("device_id", deviceID).
			Str("nonce", nonce).
			Msg("Invalid nonce format")
		return &device.ActionResponse{
			Success: false,
			Error:   "invalid nonce format",
		}, nil
	}

	if cached, found := dm.nonceCache.Lookup(deviceID, nonce); found {
		dm.logger.Info().
			Str("device_id", deviceID).
			Str("nonce", nonce).
			Msg("Returning cached response for duplicate nonce")
		return cached, nil
	}

	response, err := dm.ProcessDeviceAction(ctx, deviceID, actionJSON)
	if err != nil {
		return nil, err
	}

	dm.nonceCache.Store(deviceID, nonce, response)
	return response, nil
}

// RefreshStatus probes a device and updates its known state
func (dm *DeviceManager) RefreshStatus(ctx context.Context, deviceID string) (*device.ActionResponse, error) {
	actionJSON, err := device.NewActionJSON(device.ActionTypeControl, string(device.ControlActionPowerStatus))
	if err != nil {
		return nil, err
	}
	return dm.ProcessDeviceAction(ctx, deviceID, actionJSON)
}

// History returns the most recent actions of a device
func (dm *DeviceManager) History(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error) {
	if _, err := dm.lookup(deviceID); err != nil {
		return nil, err
	}
	if dm.history == nil {
		return []HistoryEntry{}, nil
	}
	return dm.history.Recent(ctx, deviceID, limit)
}

func (dm *DeviceManager) recordHistory(ctx context.Context, deviceID, action string, response *device.ActionResponse, elapsed time.Duration) {
	if dm.history == nil {
		return
	}

	err := dm.history.Record(ctx, HistoryEntry{
		DeviceID: deviceID,
		Action:   action,
		Success:  response.Success,
		State:    response.DeviceState,
		Error:    response.Error,
		Elapsed:  elapsed.Milliseconds(),
	})
	if err != nil {
		dm.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to record history")
	}
}

func (dm *DeviceManager) updateState(deviceID, state string) {
	dm.mutex.Lock()
	managed, exists := dm.devices[deviceID]
	if !exists {
		dm.mutex.Unlock()
		return
	}
	changed := managed.state != state
	managed.state = state
	listeners := dm.listeners
	dm.mutex.Unlock()

	on := state == device.StateOn
	managed.tv.Observe(on)
	metrics.SetPowerState(deviceID, on)

	if !changed {
		return
	}

	dm.logger.Info().
		Str("device_id", deviceID).
		Str("state", state).
		Msg("Device state changed")

	for _, listener := range listeners {
		listener(deviceID, state)
	}
}

// Reload replaces the device set with the one described by newConfig.
// Devices whose configuration is unchanged keep their remote and accessory
// model, so observers attached to them keep receiving state changes.
func (dm *DeviceManager) Reload(newConfig *Config) error {
	dm.logger.Info().Msg("Reloading device manager with new configuration")

	dm.mutex.Lock()
	old := dm.devices
	devices := make(map[string]*managedDevice, len(newConfig.Devices))
	for _, deviceConfig := range newConfig.Devices {
		if _, exists := devices[deviceConfig.ID]; exists {
			dm.mutex.Unlock()
			return fmt.Errorf("duplicate device ID: %s", deviceConfig.ID)
		}

		if managed, ok := old[deviceConfig.ID]; ok && managed.config == deviceConfig {
			devices[deviceConfig.ID] = managed
			continue
		}

		devices[deviceConfig.ID] = dm.createDevice(deviceConfig)
		dm.logger.Info().
			Str("device_id", deviceConfig.ID).
			Str("device_host", deviceConfig.Host).
			Msg("Device initialized")
	}
	dm.devices = devices
	dm.config = newConfig
	dm.mutex.Unlock()

	for id, managed := range old {
		if devices[id] == managed {
			continue
		}
		managed.tv.Close()
		if _, kept := devices[id]; !kept {
			dm.nonceCache.ClearDevice(id)
			metrics.ForgetDevice(id)
		}
	}

	return nil
}

// GetDeviceCount returns the number of managed devices
func (dm *DeviceManager) GetDeviceCount() int {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()
	return len(dm.devices)
}

// NonceStats returns nonce cache statistics
func (dm *DeviceManager) NonceStats() NonceStats {
	return dm.nonceCache.Stats()
}

// Shutdown releases every device
func (dm *DeviceManager) Shutdown() {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.logger.Info().
		Int("device_count", len(dm.devices)).
		Msg("Shutting down device manager")

	for _, managed := range dm.devices {
		managed.tv.Close()
	}
	dm.devices = make(map[string]*managedDevice)
	dm.nonceCache.Close()
}
