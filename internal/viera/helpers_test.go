package viera_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"viera/internal"
	"viera/internal/viera"
)

// endpointFor points a Viera endpoint at a mock television
func endpointFor(t *testing.T, server *httptest.Server) viera.Endpoint {
	t.Helper()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return viera.Endpoint{Host: host, Port: port}
}

// closedEndpoint returns an endpoint with nothing listening on it
func closedEndpoint(t *testing.T) viera.Endpoint {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return viera.Endpoint{Host: "127.0.0.1", Port: port}
}

// newHangingServer accepts requests and never answers them
func newHangingServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))

	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server
}

func createTestClient(t *testing.T, endpoint viera.Endpoint, options ...internal.FnModeOption) *viera.Client {
	t.Helper()
	return viera.NewClientForEndpoint("Living Room TV", endpoint, internal.NewModeOptions(options...))
}
