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
	"errors"
	"fmt"
	"os"

	"viera/internal/hub"
)

// ConfigManager handles hub configuration file operations
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// LoadConfig loads the hub configuration, writing the default template when
// the file does not exist yet
func (cm *ConfigManager) LoadConfig() (*hub.Config, error) {
	if _, err := os.Stat(cm.configPath); errors.Is(err, os.ErrNotExist) {
		defaultConfig := hub.NewDefaultConfig()
		if err := cm.SaveConfig(defaultConfig); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return defaultConfig, nil
	}

	config, err := hub.LoadConfig(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return config, nil
}

// SaveConfig validates and saves the hub configuration
func (cm *ConfigManager) SaveConfig(config *hub.Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	if err := hub.SaveConfig(config, cm.configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// AddDevice adds a new television to the configuration
func (cm *ConfigManager) AddDevice(device hub.DeviceConfig) error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	if err := config.AddDevice(device); err != nil {
		return err
	}

	return cm.SaveConfig(config)
}

// UpdateDevice replaces an existing television, keeping its ID
func (cm *ConfigManager) UpdateDevice(deviceID string, updated hub.DeviceConfig) error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	existing, err := config.GetDevice(deviceID)
	if err != nil {
		return err
	}

	updated.ID = deviceID
	if updated.Name == "" {
		updated.Name = deviceID
	}
	*existing = updated

	return cm.SaveConfig(config)
}

// RemoveDevice removes a television from the configuration
func (cm *ConfigManager) RemoveDevice(deviceID string) error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	if err := config.RemoveDevice(deviceID); err != nil {
		return err
	}

	return cm.SaveConfig(config)
}

// GetDevice gets a specific television from the configuration
func (cm *ConfigManager) GetDevice(deviceID string) (*hub.DeviceConfig, error) {
	config, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	return config.GetDevice(deviceID)
}

// ListDevices returns all televisions from the configuration
func (cm *ConfigManager) ListDevices() ([]hub.DeviceConfig, error) {
	config, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}

	return config.Devices, nil
}

// DeviceExists checks if a television with the given ID exists
func (cm *ConfigManager) DeviceExists(deviceID string) bool {
	_, err := cm.GetDevice(deviceID)
	return err == nil
}

// GetConfigPath returns the configuration file path
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// BackupConfig creates a backup of the current configuration
func (cm *ConfigManager) BackupConfig() error {
	config, err := cm.LoadConfig()
	if err != nil {
		return err
	}

	return hub.SaveConfig(config, cm.backupPath())
}

// RestoreFromBackup restores configuration from backup
func (cm *ConfigManager) RestoreFromBackup() error {
	backupPath := cm.backupPath()

	if _, err := os.Stat(backupPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	config, err := hub.LoadConfig(backupPath)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	return cm.SaveConfig(config)
}

func (cm *ConfigManager) backupPath() string {
	return cm.configPath + ".backup"
}

// DeviceTemplate returns a television entry for the given host with the
// default port and timeouts left to the client
func DeviceTemplate(id, host string) hub.DeviceConfig {
	return hub.DeviceConfig{
		ID:   id,
		Name: id,
		Host: host,
	}
}
