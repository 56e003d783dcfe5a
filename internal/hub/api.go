package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"viera/internal/device"
	"viera/internal/logger"
)

const (
	// NonceHeader carries the client nonce for action deduplication
	NonceHeader = "X-Request-Nonce"

	maxActionBodySize = 64 << 10
)

// APIResponse is the envelope of every non-action response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DeviceStatus combines static device info with its last known state
type DeviceStatus struct {
	device.DeviceInfo
	State string `json:"state"`
}

// APIServer serves the device API of the hub
type APIServer struct {
	devices  *DeviceManager
	hubID    string
	signer   *TokenSigner
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	started  time.Time
	logger   zerolog.Logger
}

// NewAPIServer creates the API server. A nil signer disables auth.
func NewAPIServer(addr, hubID string, devices *DeviceManager, signer *TokenSigner) *APIServer {
	s := &APIServer{
		devices: devices,
		hubID:   hubID,
		signer:  signer,
		started: time.Now(),
		logger:  logger.WithComponent("api"),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/devices").Subrouter()
	if signer != nil {
		api.Use(signer.Middleware)
	}
	api.HandleFunc("", s.handleDeviceList).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleDeviceGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}/status", s.handleDeviceStatus).Methods(http.MethodGet)
	api.HandleFunc("/{id}/history", s.handleDeviceHistory).Methods(http.MethodGet)
	api.HandleFunc("/{id}/actions", s.handleDeviceAction).Methods(http.MethodPost)

	s.router = router
	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background
func (s *APIServer) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = listener

	s.logger.Info().
		Str("address", listener.Addr().String()).
		Bool("auth", s.signer != nil).
		Msg("Starting hub API server")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *APIServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping hub API server")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, "Hub is healthy", map[string]interface{}{
		"status":       "healthy",
		"hub_id":       s.hubID,
		"device_count": s.devices.GetDeviceCount(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"nonces":       s.devices.NonceStats(),
	})
}

func (s *APIServer) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	infos := s.devices.GetAllDeviceInfo()

	statuses := make([]DeviceStatus, 0, len(infos))
	for _, info := range infos {
		state, _ := s.devices.State(info.ID)
		statuses = append(statuses, DeviceStatus{DeviceInfo: info, State: state})
	}

	sendSuccess(w, "", map[string]interface{}{
		"devices": statuses,
		"count":   len(statuses),
	})
}

func (s *APIServer) handleDeviceGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	dev, err := s.devices.GetDevice(id)
	if err != nil {
		s.sendDeviceError(w, err)
		return
	}
	state, _ := s.devices.State(id)

	sendSuccess(w, "", DeviceStatus{DeviceInfo: dev.GetDeviceInfo(), State: state})
}

func (s *APIServer) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	response, err := s.devices.RefreshStatus(r.Context(), id)
	if err != nil {
		s.sendDeviceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, response)
}

func (s *APIServer) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.devices.History(r.Context(), id, limit)
	if err != nil {
		s.sendDeviceError(w, err)
		return
	}

	sendSuccess(w, "", map[string]interface{}{
		"device_id": id,
		"entries":   entries,
	})
}

func (s *APIServer) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBodySize))
	if err != nil {
		sendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	response, err := s.devices.ProcessDeviceActionWithNonce(r.Context(), id, r.Header.Get(NonceHeader), body)
	if err != nil {
		s.sendDeviceError(w, err)
		return
	}

	if claims := GetClaims(r.Context()); claims != nil {
		s.logger.Debug().Str("subject", claims.Subject).Str("device_id", id).Msg("Authorized action")
	}

	sendJSON(w, http.StatusOK, response)
}

func (s *APIServer) sendDeviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrDeviceNotFound) {
		sendError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Msg("API error")
	sendError(w, http.StatusInternalServerError, err.Error())
}

func sendSuccess(w http.ResponseWriter, message string, data interface{}) {
	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func sendJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
