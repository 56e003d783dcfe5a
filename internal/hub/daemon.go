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
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"viera/internal/homekit"
	"viera/internal/logger"
	"viera/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Daemon runs the hub: device API, status poller and the optional MQTT and
// HomeKit bridges
type Daemon struct {
	config        *Config
	configPath    string
	deviceManager *DeviceManager
	history       *History
	api           *APIServer
	poller        *StatusPoller
	mqtt          *MQTTBridge
	homekit       *homekit.Bridge
	logger        zerolog.Logger
	running       bool
	mutex         sync.RWMutex
	debug         bool
	testMode      bool
}

// NewDaemon loads the configuration and builds every enabled component
func NewDaemon(configPath string, debug, testMode bool) (*Daemon, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewDaemonWithConfig(config, configPath, debug, testMode)
}

// NewDaemonWithConfig builds a daemon from an already loaded configuration
func NewDaemonWithConfig(config *Config, configPath string, debug, testMode bool) (*Daemon, error) {
	if config.Hub.LogFile != "" {
		logger.SetFile(config.Hub.LogFile, 10, 3)
	}
	if config.Hub.LogLevel != "" {
		logger.SetLevel(config.Hub.LogLevel)
	}
	if debug {
		logger.SetLevel(logger.LOG_DEBUG)
	}

	metrics.Init()

	daemon := &Daemon{
		config:     config,
		configPath: configPath,
		logger:     logger.WithComponent("daemon").With().Str("hub_id", config.Hub.ID).Logger(),
		debug:      debug,
		testMode:   testMode,
	}

	if config.History.Path != "" {
		history, err := OpenHistory(config.History.Path, config.History.MaxEntries)
		if err != nil {
			return nil, err
		}
		daemon.history = history
	}

	daemon.deviceManager = NewDeviceManager(config, daemon.history)
	daemon.poller = NewStatusPoller(daemon.deviceManager, config.Hub.PollInterval)

	signer := NewTokenSigner(config.Auth.JWTSecret, config.Hub.ID, config.Auth.TokenTTL)
	daemon.api = NewAPIServer(config.Hub.Listen, config.Hub.ID, daemon.deviceManager, signer)

	return daemon, nil
}

// DeviceManager exposes the device manager
func (d *Daemon) DeviceManager() *DeviceManager {
	return d.deviceManager
}

// Run starts the daemon and blocks until ctx is cancelled or SIGINT/SIGTERM
// arrives. SIGHUP reloads the device list from the config file.
func (d *Daemon) Run(ctx context.Context) error {
	d.mutex.Lock()
	if d.running {
		d.mutex.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info().
		Bool("debug", d.debug).
		Bool("test_mode", d.testMode).
		Msg("Starting Viera hub daemon")

	if err := d.start(); err != nil {
		d.stop()
		return err
	}

	go d.poller.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	d.logger.Info().
		Int("device_count", d.deviceManager.GetDeviceCount()).
		Str("listen", d.api.Addr()).
		Msg("Hub daemon started successfully")

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if err := d.ReloadConfig(); err != nil {
					d.logger.Error().Err(err).Msg("Configuration reload failed")
				}
				continue
			}
			d.logger.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
			return d.stop()
		case <-ctx.Done():
			d.logger.Info().Msg("Context cancelled")
			return d.stop()
		}
	}
}

func (d *Daemon) start() error {
	if err := d.deviceManager.Initialize(d.debug, d.testMode); err != nil {
		return fmt.Errorf("failed to initialize devices: %w", err)
	}

	if d.config.MQTT.Enabled {
		client, err := DialMQTT(d.config.MQTT)
		if err != nil {
			return err
		}
		d.mqtt = NewMQTTBridge(client, d.config.MQTT.TopicPrefix, d.deviceManager)
		if err := d.mqtt.Start(); err != nil {
			return fmt.Errorf("failed to start MQTT bridge: %w", err)
		}
	}

	if d.config.HomeKit.Enabled {
		if err := d.startHomeKit(); err != nil {
			return err
		}
	}

	if err := d.api.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

func (d *Daemon) startHomeKit() error {
	var accessories []*homekit.TelevisionAccessory
	for i, id := range d.deviceManager.DeviceIDs() {
		tv, err := d.deviceManager.Television(id)
		if err != nil {
			return err
		}
		accessories = append(accessories, homekit.NewTelevisionAccessory(uint64(10*(i+1)), tv))
	}

	bridge, err := homekit.NewBridge(homekit.Config{
		Name:        "Viera " + d.config.Hub.ID,
		Pin:         d.config.HomeKit.Pin,
		StoragePath: d.config.HomeKit.StoragePath,
		Port:        d.config.HomeKit.Port,
	}, accessories)
	if err != nil {
		return err
	}

	d.homekit = bridge
	d.homekit.Start()
	return nil
}

func (d *Daemon) stop() error {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return nil
	}
	d.running = false
	d.mutex.Unlock()

	d.logger.Info().Msg("Stopping hub daemon")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.api.Stop(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Error stopping API server")
	}
	if d.homekit != nil {
		d.homekit.Stop()
	}
	if d.mqtt != nil {
		d.mqtt.Stop()
	}

	d.deviceManager.Shutdown()

	if d.history != nil {
		if err := d.history.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Error closing history")
		}
	}

	d.logger.Info().Msg("Hub daemon stopped")
	return logger.Close()
}

// IsRunning returns whether the daemon is currently running
func (d *Daemon) IsRunning() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.running
}

// ReloadConfig re-reads the config file and rebuilds the device set
func (d *Daemon) ReloadConfig() error {
	d.logger.Info().
		Str("config_path", d.configPath).
		Msg("Reloading configuration")

	newConfig, err := LoadConfig(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	d.mutex.Lock()
	d.config.Devices = newConfig.Devices
	d.mutex.Unlock()

	if err := d.deviceManager.Reload(d.config); err != nil {
		return fmt.Errorf("failed to reload device manager: %w", err)
	}

	if d.homekit != nil {
		d.logger.Warn().Msg("HomeKit accessories are published at startup; restart to publish added or changed devices")
	}

	d.logger.Info().Int("device_count", d.deviceManager.GetDeviceCount()).Msg("Configuration reloaded")
	return nil
}
