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

package viera_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal"
	"viera/internal/viera"
)

// keyRecorder is a mock television that records every key event it receives
type keyRecorder struct {
	mu   sync.Mutex
	keys []string
	hits atomic.Int32
}

func (k *keyRecorder) handler(w http.ResponseWriter, r *http.Request) {
	k.hits.Add(1)
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		start := strings.Index(string(body), "<X_KeyEvent>") + len("<X_KeyEvent>")
		end := strings.Index(string(body), "</X_KeyEvent>")
		if start > 0 && end > start {
			k.mu.Lock()
			k.keys = append(k.keys, string(body[start:end]))
			k.mu.Unlock()
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (k *keyRecorder) received() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}

func newKeyRecorder(t *testing.T) (*keyRecorder, *httptest.Server) {
	t.Helper()
	recorder := &keyRecorder{}
	server := httptest.NewServer(http.HandlerFunc(recorder.handler))
	t.Cleanup(server.Close)
	return recorder, server
}

func TestNewClient(t *testing.T) {
	t.Run("uses the fixed control port", func(t *testing.T) {
		client := viera.NewClient("TV", "10.0.0.5", nil)

		assert.Equal(t, "TV", client.Name())
		assert.Equal(t, "10.0.0.5", client.Endpoint().Host)
		assert.Equal(t, 55000, client.Endpoint().Port)
	})

	t.Run("accepts mode options", func(t *testing.T) {
		options := internal.NewModeOptions(internal.WithDebug(true), internal.WithTest(true))
		client := viera.NewClient("TV", "10.0.0.5", options)

		assert.NotNil(t, client)
	})
}

func TestClientProbeStatus(t *testing.T) {
	t.Run("answer after 50ms means on", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := createTestClient(t, endpointFor(t, server))
		on, err := client.ProbeStatus(context.Background())

		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("no answer within 1000ms means off", func(t *testing.T) {
		server := newHangingServer(t)
		client := createTestClient(t, endpointFor(t, server), internal.WithProbeTimeout(1000*time.Millisecond))

		start := time.Now()
		on, err := client.ProbeStatus(context.Background())
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.False(t, on)
		assert.GreaterOrEqual(t, elapsed, 1000*time.Millisecond)
		assert.Less(t, elapsed, 3*time.Second)
	})

	t.Run("nothing listening is an error", func(t *testing.T) {
		client := createTestClient(t, closedEndpoint(t))
		on, err := client.ProbeStatus(context.Background())

		require.Error(t, err)
		assert.False(t, on)

		var transportErr *viera.TransportError
		assert.True(t, errors.As(err, &transportErr))
		assert.Contains(t, err.Error(), "failed to probe power status")
	})
}

func TestClientSendPower(t *testing.T) {
	t.Run("power on is refused without a connection", func(t *testing.T) {
		recorder, server := newKeyRecorder(t)
		client := createTestClient(t, endpointFor(t, server))

		err := client.SendPower(context.Background(), true)

		assert.ErrorIs(t, err, viera.ErrUnsupportedOperation)
		assert.True(t, viera.IsUnsupported(err))
		assert.Equal(t, int32(0), recorder.hits.Load())
	})

	t.Run("power on is refused even when nothing listens", func(t *testing.T) {
		client := createTestClient(t, closedEndpoint(t))

		err := client.SendPower(context.Background(), true)
		assert.ErrorIs(t, err, viera.ErrUnsupportedOperation)
	})

	t.Run("power off against a responsive set", func(t *testing.T) {
		recorder, server := newKeyRecorder(t)
		client := createTestClient(t, endpointFor(t, server))

		err := client.SendPower(context.Background(), false)

		require.NoError(t, err)
		assert.Equal(t, []string{"NRC_POWER-ONOFF"}, recorder.received())
	})

	t.Run("power off against a silent set is not an error", func(t *testing.T) {
		server := newHangingServer(t)
		client := createTestClient(t, endpointFor(t, server), internal.WithCommandTimeout(200*time.Millisecond))

		err := client.SendPower(context.Background(), false)
		assert.NoError(t, err)

		outcome, err := client.Send(context.Background(), viera.PowerToggle)
		assert.NoError(t, err)
		assert.Equal(t, viera.TimedOut, outcome)
	})

	t.Run("power off with nothing listening fails", func(t *testing.T) {
		client := createTestClient(t, closedEndpoint(t))

		err := client.SendPower(context.Background(), false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send power")
	})
}

func TestClientKeys(t *testing.T) {
	recorder, server := newKeyRecorder(t)
	client := createTestClient(t, endpointFor(t, server))
	ctx := context.Background()

	require.NoError(t, client.SendVolumeUp(ctx))
	require.NoError(t, client.SendVolumeDown(ctx))
	require.NoError(t, client.SendMute(ctx))

	assert.Equal(t, []string{"NRC_VOLUP-ONOFF", "NRC_VOLDOWN-ONOFF", "NRC_MUTE-ONOFF"}, recorder.received())
}

func TestClientSendRejectsUnknownCommand(t *testing.T) {
	recorder, server := newKeyRecorder(t)
	client := createTestClient(t, endpointFor(t, server))

	_, err := client.Send(context.Background(), viera.Command(99))

	assert.Error(t, err)
	assert.Equal(t, int32(0), recorder.hits.Load())
}

func TestClientConcurrentCalls(t *testing.T) {
	volumeRecorder, volumeServer := newKeyRecorder(t)
	muteRecorder, muteServer := newKeyRecorder(t)

	volumeClient := createTestClient(t, endpointFor(t, volumeServer))
	muteClient := createTestClient(t, endpointFor(t, muteServer))

	const rounds = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- volumeClient.SendVolumeUp(context.Background())
		}()
		go func() {
			defer wg.Done()
			errs <- muteClient.SendMute(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	volumeKeys := volumeRecorder.received()
	muteKeys := muteRecorder.received()
	assert.Len(t, volumeKeys, rounds)
	assert.Len(t, muteKeys, rounds)
	for _, key := range volumeKeys {
		assert.Equal(t, "NRC_VOLUP-ONOFF", key)
	}
	for _, key := range muteKeys {
		assert.Equal(t, "NRC_MUTE-ONOFF", key)
	}
}

func TestClientAsync(t *testing.T) {
	t.Run("send delivers exactly one result", func(t *testing.T) {
		_, server := newKeyRecorder(t)
		client := createTestClient(t, endpointFor(t, server))

		results := client.SendAsync(context.Background(), viera.VolumeDown)

		result, ok := <-results
		require.True(t, ok)
		assert.Equal(t, viera.VolumeDown, result.Command)
		assert.Equal(t, viera.Delivered, result.Outcome)
		assert.NoError(t, result.Err)

		_, ok = <-results
		assert.False(t, ok)
	})

	t.Run("probe delivers exactly one result", func(t *testing.T) {
		client := createTestClient(t, closedEndpoint(t))

		results := client.ProbeStatusAsync(context.Background())

		result, ok := <-results
		require.True(t, ok)
		assert.False(t, result.On)
		assert.Error(t, result.Err)

		_, ok = <-results
		assert.False(t, ok)
	})
}

func TestClientObserver(t *testing.T) {
	_, server := newKeyRecorder(t)
	client := createTestClient(t, endpointFor(t, server))

	var mu sync.Mutex
	var ops []string
	client.SetObserver(func(op string, cmd *viera.Command, res viera.Result) {
		mu.Lock()
		defer mu.Unlock()
		if cmd != nil {
			op += ":" + cmd.String()
		}
		ops = append(ops, op+":"+res.Outcome.String())
	})

	_, err := client.ProbeStatus(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.SendMute(context.Background()))
	require.ErrorIs(t, client.SendPower(context.Background(), true), viera.ErrUnsupportedOperation)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"probe:delivered", "command:mute:delivered"}, ops)
}

func TestClientTestMode(t *testing.T) {
	client := createTestClient(t, closedEndpoint(t), internal.WithTest(true))

	on, err := client.ProbeStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, on)

	assert.NoError(t, client.SendMute(context.Background()))
}
