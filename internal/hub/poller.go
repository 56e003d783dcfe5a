package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"viera/internal/logger"
)

// StatusPoller probes every device on a fixed interval so state listeners
// learn about sets switched on or off by other remotes
type StatusPoller struct {
	devices  *DeviceManager
	interval time.Duration
	logger   zerolog.Logger
}

// NewStatusPoller creates a poller; an interval of zero disables polling
func NewStatusPoller(devices *DeviceManager, interval time.Duration) *StatusPoller {
	return &StatusPoller{
		devices:  devices,
		interval: interval,
		logger:   logger.WithComponent("poller"),
	}
}

// Run polls until ctx is cancelled
func (p *StatusPoller) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info().Msg("Status polling disabled")
		return
	}

	p.logger.Info().Dur("interval", p.interval).Msg("Starting status poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ticker.C:
			p.PollOnce(ctx)
		case <-ctx.Done():
			p.logger.Info().Msg("Status poller stopping")
			return
		}
	}
}

// PollOnce probes all devices concurrently and waits for every probe
func (p *StatusPoller) PollOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, id := range p.devices.DeviceIDs() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			response, err := p.devices.RefreshStatus(ctx, id)
			if err != nil {
				p.logger.Warn().Err(err).Str("device_id", id).Msg("Status poll failed")
				return
			}
			if !response.Success {
				p.logger.Debug().Str("device_id", id).Str("error", response.Error).Msg("Status unavailable")
			}
		}(id)
	}
	wg.Wait()
}
