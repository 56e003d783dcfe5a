package hub_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"viera/internal/hub"
)

// newTelevision starts a mock set that answers every request
func newTelevision(t *testing.T) hub.DeviceConfig {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return hub.DeviceConfig{Host: host, Port: port}
}

func newTestHistory(t *testing.T) *hub.History {
	t.Helper()

	history, err := hub.OpenHistory(filepath.Join(t.TempDir(), "history.db"), 100)
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })
	return history
}

// newTestManager builds an initialized manager backed by one mock set per id
func newTestManager(t *testing.T, ids ...string) *hub.DeviceManager {
	t.Helper()

	config := &hub.Config{Hub: hub.HubConfig{ID: "test-hub"}}
	for _, id := range ids {
		device := newTelevision(t)
		device.ID = id
		device.Name = id
		config.Devices = append(config.Devices, device)
	}

	manager := hub.NewDeviceManager(config, newTestHistory(t))
	require.NoError(t, manager.Initialize(false, false))
	t.Cleanup(manager.Shutdown)
	return manager
}
