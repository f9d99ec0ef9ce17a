// Package server exposes the agent's status surface: a WebSocket feed of
// scan results, a health endpoint, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dotside-studios/checkin-agent/buildinfo"
	"github.com/dotside-studios/checkin-agent/protocol"
)

// mDNS service parameters. Operator dashboards discover door stations on the
// venue network through this service type.
const (
	mdnsServiceType = "_checkin-agent._tcp"
	mdnsDomain      = "local."
)

// Config holds the server configuration.
type Config struct {
	Port      int
	APISecret string // Optional secret required to claim the status session
	Tag       string // Tag this station serves, echoed in state broadcasts

	// SessionTimeout expires an idle status session. Zero means never.
	SessionTimeout time.Duration

	Logger *log.Logger
}

// Server manages the HTTP and WebSocket status surface.
type Server struct {
	config     Config
	logger     *log.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader
	sessions   *SessionManager
	metrics    *Metrics

	clients   map[string]*websocket.Conn // keyed by connection id
	clientsMu sync.Mutex

	lastResult *protocol.ScanResultPayload
	lastMu     sync.RWMutex

	mdnsServer *zeroconf.Server
}

// New creates a server. It does not listen until Start.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &Server{
		config:  config,
		logger:  config.Logger,
		clients: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: NewSessionManager(config.APISecret, config.SessionTimeout, config.Logger),
		metrics:  NewMetrics(),
	}
}

// Metrics returns the server's collectors for the agent to record into.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", enableCORS(s.handleHealthCheck))
	mux.HandleFunc("/ws", enableCORS(s.handleWebSocket))
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s %s", buildinfo.DisplayName, buildinfo.FullVersion())
	}))
	return mux
}

// Start begins serving in the background and registers the mDNS service.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Printf("status server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("status server error: %v", err)
		}
	}()

	if err := s.startMDNS(); err != nil {
		// Discovery is a convenience; the station works without it.
		s.logger.Printf("mDNS registration failed, continuing without discovery: %v", err)
	}
	return nil
}

// Stop shuts the server down, closing all client connections.
func (s *Server) Stop() {
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
		s.logger.Println("mDNS service stopped")
	}

	s.clientsMu.Lock()
	for id, conn := range s.clients {
		conn.Close()
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Printf("status server shutdown: %v", err)
		}
		s.httpServer = nil
	}
}

func (s *Server) startMDNS() error {
	txtRecords := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=/ws",
		"tag=" + s.config.Tag,
	}
	server, err := zeroconf.Register(buildinfo.Name, mdnsServiceType, mdnsDomain, s.config.Port, txtRecords, nil)
	if err != nil {
		return err
	}
	s.mdnsServer = server
	s.logger.Printf("mDNS service registered: %s on port %d", buildinfo.Name, s.config.Port)
	return nil
}

// broadcast sends a message to all connected clients, dropping the ones that
// fail to take it.
func (s *Server) broadcast(message *protocol.WebSocketMessage) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for id, conn := range s.clients {
		if err := conn.WriteJSON(message); err != nil {
			s.logger.Printf("websocket write to %s failed: %v", id, err)
			conn.Close()
			delete(s.clients, id)
			s.metrics.ClientsGauge.Dec()
		}
	}
}

// BroadcastScanResult pushes a finished scan to status clients and caches it
// for late joiners.
func (s *Server) BroadcastScanResult(payload protocol.ScanResultPayload) {
	s.lastMu.Lock()
	s.lastResult = &payload
	s.lastMu.Unlock()

	s.broadcast(&protocol.WebSocketMessage{
		ID:      uuid.NewString(),
		Type:    protocol.WSTypeScanResult,
		Payload: payload,
	})
}

// BroadcastScanError pushes a failed scan to status clients.
func (s *Server) BroadcastScanError(payload protocol.ScanErrorPayload) {
	s.broadcast(&protocol.WebSocketMessage{
		ID:      uuid.NewString(),
		Type:    protocol.WSTypeScanError,
		Payload: payload,
	})
}

// BroadcastDeviceStatus pushes reader availability to status clients.
func (s *Server) BroadcastDeviceStatus(payload protocol.DeviceStatusPayload) {
	s.broadcast(&protocol.WebSocketMessage{
		Type:    protocol.WSTypeDeviceStatus,
		Payload: payload,
	})
}

// BroadcastAgentState pushes an orchestrator state transition.
func (s *Server) BroadcastAgentState(state string) {
	s.broadcast(&protocol.WebSocketMessage{
		Type:    protocol.WSTypeAgentState,
		Payload: protocol.AgentStatePayload{State: state, Tag: s.config.Tag},
	})
}

// enableCORS adds CORS headers and answers preflight requests.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// handleWebSocket upgrades a status client. The session is single-claim:
// a second dashboard gets a 409 until the first disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := s.sessions.Acquire(r.URL.Query().Get("secret"), r.Header.Get("Origin"), r.RemoteAddr)
	if token == "" {
		s.logger.Printf("websocket connection from %s rejected", r.RemoteAddr)
		http.Error(w, "session unavailable", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessions.Release()
		s.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	id := uuid.NewString()
	s.clientsMu.Lock()
	s.clients[id] = conn
	s.clientsMu.Unlock()
	s.metrics.ClientsGauge.Inc()
	s.logger.Printf("websocket client %s connected from %s", id, r.RemoteAddr)

	defer func() {
		conn.Close()
		s.clientsMu.Lock()
		if _, ok := s.clients[id]; ok {
			delete(s.clients, id)
			s.metrics.ClientsGauge.Dec()
		}
		s.clientsMu.Unlock()
		s.sessions.Release()
		s.logger.Printf("websocket client %s disconnected", id)
	}()

	// Late joiners get the last result immediately.
	s.lastMu.RLock()
	last := s.lastResult
	s.lastMu.RUnlock()
	if last != nil {
		conn.WriteJSON(&protocol.WebSocketMessage{
			Type:    protocol.WSTypeScanResult,
			Payload: *last,
		})
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.sessions.RefreshTimeout()

		var req protocol.WebSocketRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.sendErrorResponse(conn, "", protocol.ErrCodeParse, "invalid message format")
			continue
		}
		s.handleRequest(conn, req)
	}
}

func (s *Server) handleRequest(conn *websocket.Conn, req protocol.WebSocketRequest) {
	switch req.Type {
	case protocol.WSTypeScanResult:
		// Explicit replay request for the last result.
		s.lastMu.RLock()
		last := s.lastResult
		s.lastMu.RUnlock()
		conn.WriteJSON(&protocol.WebSocketResponse{
			ID:      req.ID,
			Type:    protocol.WSTypeScanResult,
			Success: last != nil,
			Payload: last,
		})
	default:
		s.sendErrorResponse(conn, req.ID, protocol.ErrCodeUnknownType,
			fmt.Sprintf("unknown message type: %s", req.Type))
	}
}

func (s *Server) sendErrorResponse(conn *websocket.Conn, requestID, errorCode, message string) {
	response := protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: map[string]any{"code": errorCode},
	}
	if err := conn.WriteJSON(response); err != nil {
		s.logger.Printf("failed to send error response: %v", err)
	}
}

// handleHealthCheck provides a health check endpoint (GET /api/v1/health).
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"version":   buildinfo.FullVersion(),
		"tag":       s.config.Tag,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
