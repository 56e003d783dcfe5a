package hub_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal/device"
	"viera/internal/hub"
)

func doRequest(t *testing.T, handler http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &value))
	return value
}

func TestAPIHealth(t *testing.T) {
	manager := newTestManager(t, "tv")
	api := hub.NewAPIServer(":0", "home", manager, nil)

	rec := doRequest(t, api.Handler(), http.MethodGet, "/health", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	response := decode[hub.APIResponse](t, rec)
	assert.True(t, response.Success)

	data := response.Data.(map[string]interface{})
	assert.Equal(t, "home", data["hub_id"])
	assert.Equal(t, float64(1), data["device_count"])
}

func TestAPIDevices(t *testing.T) {
	manager := newTestManager(t, "living_room", "bedroom")
	handler := hub.NewAPIServer(":0", "home", manager, nil).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/devices", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[hub.APIResponse](t, rec)
	assert.Equal(t, float64(2), list.Data.(map[string]interface{})["count"])

	rec = doRequest(t, handler, http.MethodGet, "/devices/bedroom", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	single := decode[hub.APIResponse](t, rec)
	assert.Equal(t, "bedroom", single.Data.(map[string]interface{})["id"])

	rec = doRequest(t, handler, http.MethodGet, "/devices/kitchen", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIStatus(t *testing.T) {
	manager := newTestManager(t, "tv")
	handler := hub.NewAPIServer(":0", "home", manager, nil).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/devices/tv/status", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	response := decode[device.ActionResponse](t, rec)
	assert.True(t, response.Success)
	assert.Equal(t, device.StateOn, response.DeviceState)
}

func TestAPIActions(t *testing.T) {
	manager := newTestManager(t, "tv")
	handler := hub.NewAPIServer(":0", "home", manager, nil).Handler()

	t.Run("mute", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/devices/tv/actions",
			[]byte(`{"type":"remote","action":"mute"}`), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		response := decode[device.ActionResponse](t, rec)
		assert.True(t, response.Success)
	})

	t.Run("power on is refused", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/devices/tv/actions",
			[]byte(`{"type":"remote","action":"power_on"}`), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		response := decode[device.ActionResponse](t, rec)
		assert.False(t, response.Success)
	})

	t.Run("nonce replay", func(t *testing.T) {
		headers := map[string]string{hub.NonceHeader: hub.GenerateNonce()}
		body := []byte(`{"type":"remote","action":"volume_down"}`)

		first := doRequest(t, handler, http.MethodPost, "/devices/tv/actions", body, headers)
		second := doRequest(t, handler, http.MethodPost, "/devices/tv/actions", body, headers)

		assert.Equal(t, first.Body.String(), second.Body.String())
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/devices/ghost/actions",
			[]byte(`{"type":"remote","action":"mute"}`), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/devices/tv/actions", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestAPIHistory(t *testing.T) {
	manager := newTestManager(t, "tv")
	handler := hub.NewAPIServer(":0", "home", manager, nil).Handler()

	for i := 0; i < 3; i++ {
		doRequest(t, handler, http.MethodPost, "/devices/tv/actions", []byte(`{"type":"remote","action":"volume_up"}`), nil)
	}

	rec := doRequest(t, handler, http.MethodGet, "/devices/tv/history?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	response := decode[hub.APIResponse](t, rec)
	entries := response.Data.(map[string]interface{})["entries"].([]interface{})
	assert.Len(t, entries, 2)

	rec = doRequest(t, handler, http.MethodGet, "/devices/tv/history?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIAuth(t *testing.T) {
	manager := newTestManager(t, "tv")
	signer := hub.NewTokenSigner("s3cret", "home", time.Hour)
	handler := hub.NewAPIServer(":0", "home", manager, signer).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/devices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	token, err := signer.Sign("tester")
	require.NoError(t, err)
	rec = doRequest(t, handler, http.MethodGet, "/devices", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIServerStartStop(t *testing.T) {
	manager := newTestManager(t)
	api := hub.NewAPIServer("127.0.0.1:0", "home", manager, nil)

	require.NoError(t, api.Start())
	defer api.Stop(context.Background())

	resp, err := http.Get("http://" + api.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
