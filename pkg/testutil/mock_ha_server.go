// Package testutil provides a mock Home Assistant WebSocket server and
// helpers for writing integration tests against the real client.
package testutil

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// MockHAServer simulates a Home Assistant WebSocket server. It implements the
// auth handshake, get_states, and call_service, and mirrors the media_player
// state transitions the wakeup lifecycle depends on.
type MockHAServer struct {
	server       *http.Server
	addr         string
	states       map[string]*EntityState
	statesMu     sync.RWMutex
	connections  []*connWrapper
	connsMu      sync.Mutex
	token        string
	serviceCalls []ServiceCall
	callsMu      sync.Mutex
	failures     map[string]int // domain/service -> remaining failures
	failuresMu   sync.Mutex
	playStates   map[string]string
}

// EntityState represents a Home Assistant entity state
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Message represents a WebSocket message
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail represents an error payload in a result message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage represents an authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// CallServiceRequest represents a service call
type CallServiceRequest struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data,omitempty"`
}

// GetStatesRequest represents a get_states request
type GetStatesRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// NewMockHAServer creates a new mock HA server
func NewMockHAServer(addr, token string) *MockHAServer {
	return &MockHAServer{
		addr:         addr,
		states:       make(map[string]*EntityState),
		connections:  make([]*connWrapper, 0),
		token:        token,
		serviceCalls: make([]ServiceCall, 0),
		failures:     make(map[string]int),
		playStates:   make(map[string]string),
	}
}

// Start starts the mock server
func (s *MockHAServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Mock HA server error: %v", err)
		}
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Stop stops the mock server
func (s *MockHAServer) Stop() error {
	s.connsMu.Lock()
	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
	s.connsMu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// SetState sets an entity state
func (s *MockHAServer) SetState(entityID, state string, attributes map[string]interface{}) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	s.setStateLocked(entityID, state, attributes)
}

func (s *MockHAServer) setStateLocked(entityID, state string, attributes map[string]interface{}) {
	if attributes == nil {
		if prev, ok := s.states[entityID]; ok {
			attributes = prev.Attributes
		} else {
			attributes = make(map[string]interface{})
		}
	}

	now := time.Now()
	s.states[entityID] = &EntityState{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
}

// GetState retrieves a state
func (s *MockHAServer) GetState(entityID string) *EntityState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()
	return s.states[entityID]
}

// FailServiceTimes makes the next n matching call_service requests fail
func (s *MockHAServer) FailServiceTimes(domain, service string, n int) {
	s.failuresMu.Lock()
	defer s.failuresMu.Unlock()
	s.failures[domain+"/"+service] = n
}

// SetPlayResultState overrides the state an entity transitions to after a
// play_media call (default "playing").
func (s *MockHAServer) SetPlayResultState(entityID, state string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	s.playStates[entityID] = state
}

// handleWebSocket handles WebSocket connections
func (s *MockHAServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wrapper := &connWrapper{conn: conn}

	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w.conn == conn {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
		conn.Close()
	}()

	// Send auth_required
	wrapper.writeMu.Lock()
	conn.WriteJSON(Message{Type: "auth_required"})
	wrapper.writeMu.Unlock()

	// Receive auth
	var authMsg AuthMessage
	if err := conn.ReadJSON(&authMsg); err != nil {
		log.Printf("Failed to read auth: %v", err)
		return
	}

	// Validate token
	if authMsg.AccessToken != s.token {
		wrapper.writeMu.Lock()
		conn.WriteJSON(Message{Type: "auth_invalid"})
		wrapper.writeMu.Unlock()
		return
	}

	// Send auth_ok
	wrapper.writeMu.Lock()
	conn.WriteJSON(Message{Type: "auth_ok"})
	wrapper.writeMu.Unlock()

	// Handle messages
	for {
		var msg json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		var baseMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &baseMsg); err != nil {
			continue
		}

		switch baseMsg.Type {
		case "get_states":
			s.handleGetStates(wrapper, msg)
		case "call_service":
			s.handleCallService(wrapper, msg)
		}
	}
}

// handleGetStates handles get_states requests
func (s *MockHAServer) handleGetStates(wrapper *connWrapper, msg json.RawMessage) {
	var req GetStatesRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	s.statesMu.RLock()
	states := make([]*EntityState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	s.statesMu.RUnlock()

	statesJSON, _ := json.Marshal(states)
	success := true
	wrapper.writeMu.Lock()
	wrapper.conn.WriteJSON(Message{
		ID:      req.ID,
		Type:    "result",
		Success: &success,
		Result:  statesJSON,
	})
	wrapper.writeMu.Unlock()
}

// handleCallService handles call_service requests
func (s *MockHAServer) handleCallService(wrapper *connWrapper, msg json.RawMessage) {
	var req CallServiceRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}

	// Track the service call for test verification
	s.callsMu.Lock()
	s.serviceCalls = append(s.serviceCalls, ServiceCall{
		Timestamp:   time.Now(),
		Domain:      req.Domain,
		Service:     req.Service,
		ServiceData: req.ServiceData,
	})
	s.callsMu.Unlock()

	// Injected failures take precedence over state simulation
	s.failuresMu.Lock()
	key := req.Domain + "/" + req.Service
	if remaining, ok := s.failures[key]; ok && remaining > 0 {
		s.failures[key] = remaining - 1
		s.failuresMu.Unlock()

		success := false
		wrapper.writeMu.Lock()
		wrapper.conn.WriteJSON(Message{
			ID:      req.ID,
			Type:    "result",
			Success: &success,
			Error:   &ErrorDetail{Code: "unknown_error", Message: "injected failure"},
		})
		wrapper.writeMu.Unlock()
		return
	}
	s.failuresMu.Unlock()

	entityID, _ := req.ServiceData["entity_id"].(string)
	if entityID != "" {
		s.applyService(entityID, req.Domain, req.Service, req.ServiceData)
	}

	success := true
	wrapper.writeMu.Lock()
	wrapper.conn.WriteJSON(Message{
		ID:      req.ID,
		Type:    "result",
		Success: &success,
	})
	wrapper.writeMu.Unlock()
}

// applyService mirrors the media_player state transitions HA would make
func (s *MockHAServer) applyService(entityID, domain, service string, data map[string]interface{}) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	prev := s.states[entityID]
	state := "idle"
	attrs := make(map[string]interface{})
	if prev != nil {
		state = prev.State
		for k, v := range prev.Attributes {
			attrs[k] = v
		}
	}

	switch {
	case domain == "media_player" && service == "volume_set":
		if level, ok := data["volume_level"].(float64); ok {
			attrs["volume_level"] = level
		}
	case domain == "media_player" && service == "media_stop":
		state = "idle"
	case (domain == "media_player" || domain == "music_assistant") && service == "play_media":
		state = "playing"
		if override, ok := s.playStates[entityID]; ok {
			state = override
		}
	default:
		return
	}

	s.setStateLocked(entityID, state, attrs)
}

// GetServiceCalls returns all service calls since last clear
func (s *MockHAServer) GetServiceCalls() []ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	calls := make([]ServiceCall, len(s.serviceCalls))
	copy(calls, s.serviceCalls)
	return calls
}

// ClearServiceCalls resets the service call log
func (s *MockHAServer) ClearServiceCalls() {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	s.serviceCalls = nil
}

// FindServiceCall finds the most recent service call matching criteria.
// Returns nil if no matching call found.
func (s *MockHAServer) FindServiceCall(domain, service string, entityID string) *ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()

	for i := len(s.serviceCalls) - 1; i >= 0; i-- {
		call := s.serviceCalls[i]
		if call.Domain == domain && call.Service == service {
			if entityID == "" {
				return &call
			}
			if eid, ok := call.ServiceData["entity_id"].(string); ok && eid == entityID {
				return &call
			}
		}
	}
	return nil
}

// CountServiceCalls counts service calls matching criteria
func (s *MockHAServer) CountServiceCalls(domain, service string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()

	count := 0
	for _, call := range s.serviceCalls {
		if call.Domain == domain && call.Service == service {
			count++
		}
	}
	return count
}

// InitializePlayers seeds idle media player states with a starting volume
func (s *MockHAServer) InitializePlayers(entityIDs ...string) {
	for _, entityID := range entityIDs {
		s.SetState(entityID, "idle", map[string]interface{}{
			"friendly_name": entityID,
			"volume_level":  0.3,
		})
	}
}
