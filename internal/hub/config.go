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

package hub

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"viera/internal"
	"viera/internal/viera"
)

const (
	DefaultListen       = ":8080"
	DefaultPollInterval = 30 * time.Second
	DefaultTopicPrefix  = "viera"
	DefaultHistorySize  = 1000
	DefaultTokenTTL     = 24 * time.Hour
)

var homekitPinPattern = regexp.MustCompile(`^\d{8}$`)

// Config represents the hub configuration structure
type Config struct {
	Hub     HubConfig      `yaml:"hub"`
	Auth    AuthConfig     `yaml:"auth"`
	History HistoryConfig  `yaml:"history"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	HomeKit HomeKitConfig  `yaml:"homekit"`
	Devices []DeviceConfig `yaml:"devices"`
}

// HubConfig contains hub identity and runtime settings
type HubConfig struct {
	ID           string        `yaml:"id"`
	Listen       string        `yaml:"listen"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogFile      string        `yaml:"log_file,omitempty"`
	LogLevel     string        `yaml:"log_level,omitempty"`
}

// AuthConfig enables bearer token auth on the device API when a secret is set
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret,omitempty"`
	TokenTTL  time.Duration `yaml:"token_ttl,omitempty"`
}

// HistoryConfig controls the dispatch history store
type HistoryConfig struct {
	Path       string `yaml:"path,omitempty"`
	MaxEntries int    `yaml:"max_entries,omitempty"`
}

// MQTTConfig contains broker settings for the state bridge
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// HomeKitConfig contains HAP bridge settings
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Pin         string `yaml:"pin,omitempty"`
	StoragePath string `yaml:"storage_path,omitempty"`
	Port        string `yaml:"port,omitempty"`
}

// DeviceConfig represents a single television
type DeviceConfig struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port,omitempty"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout,omitempty"`
	CommandTimeout time.Duration `yaml:"command_timeout,omitempty"`
}

// Endpoint returns the control endpoint of the device
func (d DeviceConfig) Endpoint() viera.Endpoint {
	endpoint := viera.NewEndpoint(d.Host)
	if d.Port > 0 {
		endpoint.Port = d.Port
	}
	return endpoint
}

// ModeOptions merges the per-device timeouts into the hub run mode
func (d DeviceConfig) ModeOptions(debug, test bool) *internal.FnModeOptions {
	return internal.NewModeOptions(
		internal.WithDebug(debug),
		internal.WithTest(test),
		internal.WithProbeTimeout(d.ProbeTimeout),
		internal.WithCommandTimeout(d.CommandTimeout),
	)
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Hub.Listen == "" {
		c.Hub.Listen = DefaultListen
	}
	if c.Hub.PollInterval == 0 {
		c.Hub.PollInterval = DefaultPollInterval
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = DefaultHistorySize
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "viera-" + c.Hub.ID
	}
	for i := range c.Devices {
		if c.Devices[i].Name == "" {
			c.Devices[i].Name = c.Devices[i].ID
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Hub.ID == "" {
		return fmt.Errorf("hub.id is required")
	}
	if c.Hub.PollInterval < 0 {
		return fmt.Errorf("hub.poll_interval must not be negative")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}

	if c.HomeKit.Enabled && !homekitPinPattern.MatchString(c.HomeKit.Pin) {
		return fmt.Errorf("homekit.pin must be 8 digits")
	}

	deviceIDs := make(map[string]bool)
	for i, device := range c.Devices {
		if device.ID == "" {
			return fmt.Errorf("device[%d].id is required", i)
		}
		if deviceIDs[device.ID] {
			return fmt.Errorf("duplicate device ID: %s", device.ID)
		}
		deviceIDs[device.ID] = true

		if device.Host == "" {
			return fmt.Errorf("device[%d].host is required", i)
		}
		if device.Port < 0 || device.Port > 65535 {
			return fmt.Errorf("device[%d].port out of range: %d", i, device.Port)
		}
		if device.ProbeTimeout < 0 || device.CommandTimeout < 0 {
			return fmt.Errorf("device[%d] timeouts must not be negative", i)
		}
	}

	return nil
}

// GetDevice returns a device configuration by ID
func (c *Config) GetDevice(id string) (*DeviceConfig, error) {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			return &c.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// AddDevice appends a device, rejecting duplicate IDs
func (c *Config) AddDevice(device DeviceConfig) error {
	if _, err := c.GetDevice(device.ID); err == nil {
		return fmt.Errorf("duplicate device ID: %s", device.ID)
	}
	if device.Name == "" {
		device.Name = device.ID
	}
	c.Devices = append(c.Devices, device)
	return nil
}

// RemoveDevice drops the device with the given ID
func (c *Config) RemoveDevice(id string) error {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			c.Devices = append(c.Devices[:i], c.Devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// Save saves the configuration to a YAML file
func (c *Config) Save(filepath string) error {
	return SaveConfig(c, filepath)
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filepath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewDefaultConfig creates a default configuration template
func NewDefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ID:           uuid.New().String(),
			Listen:       DefaultListen,
			PollInterval: DefaultPollInterval,
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		History: HistoryConfig{
			Path:       "viera-history.db",
			MaxEntries: DefaultHistorySize,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: DefaultTopicPrefix,
		},
		HomeKit: HomeKitConfig{
			Pin:         "00102003",
			StoragePath: "homekit",
		},
		Devices: []DeviceConfig{
			{
				ID:   "living_room_tv",
				Name: "Living Room TV",
				Host: "192.168.1.100",
			},
		},
	}
}
