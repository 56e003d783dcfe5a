package viera

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"viera/internal"
	"viera/internal/logger"
)

// Client is the entry point used by host integrations for one television.
// It holds no session; every call opens its own connection.
type Client struct {
	name           string
	dispatcher     *Dispatcher
	probeTimeout   time.Duration
	commandTimeout time.Duration
	debug          bool
	logger         zerolog.Logger
}

// NewClient creates a client for the television at host
func NewClient(name, host string, options *internal.FnModeOptions) *Client {
	return NewClientForEndpoint(name, NewEndpoint(host), options)
}

// NewClientForEndpoint creates a client for an explicit endpoint
func NewClientForEndpoint(name string, endpoint Endpoint, options *internal.FnModeOptions) *Client {
	if options == nil {
		options = internal.NewModeOptions()
	}

	if options.Debug {
		logger.SetLevel(logger.LOG_DEBUG)
	}

	client := &Client{
		name:           name,
		dispatcher:     NewDispatcher(endpoint, options.Debug, options.Test),
		probeTimeout:   DefaultProbeTimeout,
		commandTimeout: DefaultCommandTimeout,
		debug:          options.Debug,
		logger: logger.WithComponent("viera").With().
			Str("device", name).
			Str("host", endpoint.Host).
			Logger(),
	}

	if options.ProbeTimeout > 0 {
		client.probeTimeout = options.ProbeTimeout
	}
	if options.CommandTimeout > 0 {
		client.commandTimeout = options.CommandTimeout
	}

	return client
}

// Name returns the opaque display name
func (c *Client) Name() string {
	return c.name
}

// Endpoint returns the control endpoint
func (c *Client) Endpoint() Endpoint {
	return c.dispatcher.Endpoint()
}

// SetObserver installs a hook called after every dispatch
func (c *Client) SetObserver(fn ObserveFunc) {
	c.dispatcher.observe = fn
}

// ProbeStatus reports whether the television is on
func (c *Client) ProbeStatus(ctx context.Context) (bool, error) {
	c.logger.Debug().Msg("Query power status")

	state, err := c.dispatcher.ProbeStatus(ctx, c.probeTimeout)
	if err != nil {
		c.logger.Error().Err(err).Msg("Power status probe failed")
		return false, fmt.Errorf("failed to probe power status: %w", err)
	}

	if state.On() {
		c.logger.Debug().Msg("Responded, TV is on")
	} else {
		c.logger.Debug().Msg("Did not respond, TV is off")
	}
	return state.On(), nil
}

// SendPower toggles the television off. Turning it on is refused without
// touching the network since the toggle cannot be confirmed.
func (c *Client) SendPower(ctx context.Context, turnOn bool) error {
	if turnOn {
		c.logger.Info().Msg("Power on not supported")
		return ErrUnsupportedOperation
	}
	return c.send(ctx, PowerToggle)
}

// SendVolumeUp presses volume up
func (c *Client) SendVolumeUp(ctx context.Context) error {
	return c.send(ctx, VolumeUp)
}

// SendVolumeDown presses volume down
func (c *Client) SendVolumeDown(ctx context.Context) error {
	return c.send(ctx, VolumeDown)
}

// SendMute toggles mute
func (c *Client) SendMute(ctx context.Context) error {
	return c.send(ctx, Mute)
}

// Send dispatches cmd and returns its outcome. TimedOut is not an error.
func (c *Client) Send(ctx context.Context, cmd Command) (Outcome, error) {
	if !cmd.Valid() {
		return TransportFailed, fmt.Errorf("unknown command: %v", cmd)
	}

	c.logger.Debug().
		Str("command", cmd.String()).
		Str("key", string(cmd.KeyEvent())).
		Msg("Sending key event")

	outcome, err := c.dispatcher.SendCommand(ctx, cmd, c.commandTimeout)
	if err != nil {
		c.logger.Error().
			Str("command", cmd.String()).
			Err(err).
			Msg("Failed to send key event")
		return outcome, fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	if outcome == TimedOut {
		c.logger.Info().
			Str("command", cmd.String()).
			Msg("Did not respond, TV is off")
	} else {
		c.logger.Debug().
			Str("command", cmd.String()).
			Msg("Key event delivered")
	}

	return outcome, nil
}

func (c *Client) send(ctx context.Context, cmd Command) error {
	_, err := c.Send(ctx, cmd)
	return err
}

// ProbeStatusAsync runs ProbeStatus in the background. The channel receives
// exactly one value and is then closed.
func (c *Client) ProbeStatusAsync(ctx context.Context) <-chan StatusResult {
	ch := make(chan StatusResult, 1)
	go func() {
		defer close(ch)
		on, err := c.ProbeStatus(ctx)
		ch <- StatusResult{On: on, Err: err}
	}()
	return ch
}

// SendAsync runs Send in the background. The channel receives exactly one
// value and is then closed.
func (c *Client) SendAsync(ctx context.Context, cmd Command) <-chan CommandResult {
	ch := make(chan CommandResult, 1)
	go func() {
		defer close(ch)
		outcome, err := c.Send(ctx, cmd)
		ch <- CommandResult{Command: cmd, Outcome: outcome, Err: err}
	}()
	return ch
}
