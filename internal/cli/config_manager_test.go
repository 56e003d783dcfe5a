package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal/hub"
)

func newTestConfigManager(t *testing.T) *ConfigManager {
	t.Helper()
	return NewConfigManager(filepath.Join(t.TempDir(), "hub.yml"))
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	cm := newTestConfigManager(t)

	config, err := cm.LoadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, config.Hub.ID)
	assert.FileExists(t, cm.GetConfigPath())

	reloaded, err := cm.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Hub.ID, reloaded.Hub.ID)
}

func TestDeviceLifecycle(t *testing.T) {
	cm := newTestConfigManager(t)

	bedroom := DeviceTemplate("bedroom", "10.0.0.7")
	bedroom.CommandTimeout = 3 * time.Second
	require.NoError(t, cm.AddDevice(bedroom))
	assert.True(t, cm.DeviceExists("bedroom"))

	err := cm.AddDevice(bedroom)
	assert.Error(t, err, "duplicate IDs are rejected")

	device, err := cm.GetDevice("bedroom")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", device.Host)
	assert.Equal(t, 3*time.Second, device.CommandTimeout)

	require.NoError(t, cm.UpdateDevice("bedroom", hub.DeviceConfig{Host: "10.0.0.8", Port: 55001}))
	device, err = cm.GetDevice("bedroom")
	require.NoError(t, err)
	assert.Equal(t, "bedroom", device.ID)
	assert.Equal(t, "bedroom", device.Name)
	assert.Equal(t, 55001, device.Port)

	devices, err := cm.ListDevices()
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	require.NoError(t, cm.RemoveDevice("bedroom"))
	assert.False(t, cm.DeviceExists("bedroom"))
	assert.ErrorIs(t, cm.RemoveDevice("bedroom"), hub.ErrDeviceNotFound)
}

func TestAddInvalidDeviceLeavesFileUntouched(t *testing.T) {
	cm := newTestConfigManager(t)

	err := cm.AddDevice(hub.DeviceConfig{ID: "nohost"})
	assert.Error(t, err)

	devices, err := cm.ListDevices()
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestBackupAndRestore(t *testing.T) {
	cm := newTestConfigManager(t)

	assert.Error(t, cm.RestoreFromBackup())

	require.NoError(t, cm.BackupConfig())
	require.NoError(t, cm.RemoveDevice("living_room_tv"))

	require.NoError(t, cm.RestoreFromBackup())
	assert.True(t, cm.DeviceExists("living_room_tv"))
}
