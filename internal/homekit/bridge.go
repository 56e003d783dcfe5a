// Package homekit publishes televisions to Apple Home through a HAP bridge.
package homekit

import (
	"fmt"

	"github.com/brutella/hc"
	hcaccessory "github.com/brutella/hc/accessory"
	"github.com/rs/zerolog"
	"viera/internal/logger"
	"viera/internal/viera"
)

// Config holds the HAP pairing settings
type Config struct {
	Name        string
	Pin         string
	StoragePath string
	Port        string
}

// Bridge owns the HAP transport for all television accessories
type Bridge struct {
	transport hc.Transport
	logger    zerolog.Logger
}

// NewBridge creates a bridge publishing every accessory in tvs
func NewBridge(cfg Config, tvs []*TelevisionAccessory) (*Bridge, error) {
	if cfg.Name == "" {
		cfg.Name = "Viera Bridge"
	}

	bridge := hcaccessory.NewBridge(hcaccessory.Info{
		ID:           1,
		Name:         cfg.Name,
		Manufacturer: viera.Manufacturer,
	})

	var accs []*hcaccessory.Accessory
	for _, tv := range tvs {
		accs = append(accs, tv.Accessories()...)
	}

	transport, err := hc.NewIPTransport(hc.Config{
		Pin:         cfg.Pin,
		StoragePath: cfg.StoragePath,
		Port:        cfg.Port,
	}, bridge.Accessory, accs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HomeKit transport: %w", err)
	}

	return &Bridge{
		transport: transport,
		logger:    logger.WithComponent("homekit"),
	}, nil
}

// Start publishes the bridge in the background
func (b *Bridge) Start() {
	b.logger.Info().Msg("Starting HomeKit bridge")
	go b.transport.Start()
}

// Stop unpublishes the bridge and waits for the transport to finish
func (b *Bridge) Stop() {
	<-b.transport.Stop()
	b.logger.Info().Msg("HomeKit bridge stopped")
}
