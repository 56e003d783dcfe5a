package viera

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"viera/internal/logger"
)

// ObserveFunc is called once per finished dispatch
type ObserveFunc func(op string, cmd *Command, res Result)

// Dispatcher sends encoded requests to one television and classifies the outcome
type Dispatcher struct {
	endpoint Endpoint
	debug    bool
	testMode bool
	observe  ObserveFunc
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher for endpoint
func NewDispatcher(endpoint Endpoint, debug, testMode bool) *Dispatcher {
	return &Dispatcher{
		endpoint: endpoint,
		debug:    debug,
		testMode: testMode,
		logger:   logger.WithComponent("viera"),
	}
}

// Endpoint returns the endpoint the dispatcher talks to
func (d *Dispatcher) Endpoint() Endpoint {
	return d.endpoint
}

// Dispatch performs exactly one exchange bounded by timeout.
//
// Each call dials its own connection and closes it afterwards. The deadline
// timer sets a flag before aborting the request, so an error that surfaces
// after the abort is reported as TimedOut and never as a second failure.
func (d *Dispatcher) Dispatch(ctx context.Context, r Request, timeout time.Duration) Result {
	start := time.Now()

	if d.testMode {
		d.logger.Debug().
			Str("method", r.Method).
			Str("path", r.Path).
			Msg("Test mode: simulating delivered request")
		return Result{Outcome: Delivered, StatusCode: http.StatusOK}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	transport := &http.Transport{
		DialContext:       (&net.Dialer{}).DialContext,
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	url := d.endpoint.URL(r.Path)
	req, err := http.NewRequestWithContext(ctx, r.Method, url, body)
	if err != nil {
		return d.failure(&timedOut, "build", err, start)
	}
	for name, values := range r.Header {
		req.Header[name] = values
	}

	if d.debug {
		d.logger.Debug().
			Str("url", url).
			Str("method", r.Method).
			Int("body_bytes", len(r.Body)).
			Dur("timeout", timeout).
			Msg("Dispatching request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return d.failure(&timedOut, r.Method, err, start)
	}
	defer resp.Body.Close()

	// the response only counts once the body stream has ended
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return d.failure(&timedOut, r.Method, err, start)
	}

	res := Result{
		Outcome:    Delivered,
		StatusCode: resp.StatusCode,
		Elapsed:    time.Since(start),
	}

	if d.debug {
		d.logger.Debug().
			Int("status", resp.StatusCode).
			Dur("elapsed", res.Elapsed).
			Msg("Response completed")
	}

	return res
}

// failure classifies a transport error using the deadline flag
func (d *Dispatcher) failure(timedOut *atomic.Bool, op string, err error, start time.Time) Result {
	elapsed := time.Since(start)

	if timedOut.Load() {
		d.logger.Debug().
			Str("address", d.endpoint.Address()).
			Dur("elapsed", elapsed).
			Msg("Did not respond before deadline")
		return Result{Outcome: TimedOut, Elapsed: elapsed}
	}

	d.logger.Debug().
		Str("address", d.endpoint.Address()).
		Err(err).
		Msg("Transport error")

	return Result{
		Outcome: TransportFailed,
		Elapsed: elapsed,
		Err: &TransportError{
			Op:    op,
			Addr:  d.endpoint.Address(),
			Cause: err,
		},
	}
}

// ProbeStatus infers the power state from whether GET /nrc/control_0 answers.
// The television stops listening when it is off, so a timeout means PowerOff.
// A transport error is returned as is and is not coerced into a state.
func (d *Dispatcher) ProbeStatus(ctx context.Context, timeout time.Duration) (PowerState, error) {
	res := d.Dispatch(ctx, ProbeRequest(), timeout)
	d.notify("probe", nil, res)

	switch res.Outcome {
	case Delivered:
		return PowerOn, nil
	case TimedOut:
		return PowerOff, nil
	default:
		return PowerOff, res.Err
	}
}

// SendCommand presses the button for cmd. A timeout is not an error: the
// television is assumed to be off, which is reported as TimedOut.
func (d *Dispatcher) SendCommand(ctx context.Context, cmd Command, timeout time.Duration) (Outcome, error) {
	res := d.Dispatch(ctx, Encode(cmd), timeout)
	d.notify("command", &cmd, res)

	if res.Outcome == TransportFailed {
		return res.Outcome, res.Err
	}
	return res.Outcome, nil
}

func (d *Dispatcher) notify(op string, cmd *Command, res Result) {
	if d.observe != nil {
		d.observe(op, cmd, res)
	}
}
