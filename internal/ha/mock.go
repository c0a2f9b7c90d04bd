package ha

import (
	"fmt"
	"sync"
	"time"
)

// MockClient implements HAClient for testing. It records service calls,
// supports per-service failure injection, and simulates the media_player
// state transitions the playback lifecycle depends on.
type MockClient struct {
	mu           sync.Mutex
	states       map[string]*State
	stateErrors  map[string]error
	serviceCalls []ServiceCall
	failures     map[string]*failureRule
	playStates   map[string]string
	connected    bool
}

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

type failureRule struct {
	err       error
	remaining int // negative means fail forever
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		states:       make(map[string]*State),
		stateErrors:  make(map[string]error),
		serviceCalls: make([]ServiceCall, 0),
		failures:     make(map[string]*failureRule),
		playStates:   make(map[string]string),
	}
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetState sets a mock entity state (for test setup)
func (m *MockClient) SetState(entityID, stateValue string, attributes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(entityID, stateValue, attributes)
}

func (m *MockClient) setStateLocked(entityID, stateValue string, attributes map[string]interface{}) {
	if attributes == nil {
		if prev, ok := m.states[entityID]; ok {
			attributes = prev.Attributes
		} else {
			attributes = make(map[string]interface{})
		}
	}
	now := time.Now()
	m.states[entityID] = &State{
		EntityID:    entityID,
		State:       stateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
}

// FailGetState makes GetState for an entity return the given error
func (m *MockClient) FailGetState(entityID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.stateErrors, entityID)
		return
	}
	m.stateErrors[entityID] = err
}

// GetState retrieves a mock state
func (m *MockClient) GetState(entityID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.stateErrors[entityID]; ok {
		return nil, err
	}

	state, ok := m.states[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}
	return state, nil
}

// GetAllStates retrieves all mock states
func (m *MockClient) GetAllStates() ([]*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]*State, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}
	return states, nil
}

func failureKey(domain, service, entityID string) string {
	if entityID == "" {
		return domain + "/" + service
	}
	return domain + "/" + service + "#" + entityID
}

// FailService makes every matching service call fail with err. Pass an empty
// entityID to match all entities. Pass a nil err to clear the rule.
func (m *MockClient) FailService(domain, service, entityID string, err error) {
	m.FailServiceTimes(domain, service, entityID, err, -1)
}

// FailServiceTimes makes the next n matching service calls fail with err,
// then succeed again.
func (m *MockClient) FailServiceTimes(domain, service, entityID string, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := failureKey(domain, service, entityID)
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = &failureRule{err: err, remaining: n}
}

// SetPlayResultState overrides the state an entity transitions to after a
// successful play_media call (default "playing"). Used to exercise the
// verification retry paths.
func (m *MockClient) SetPlayResultState(entityID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playStates[entityID] = state
}

// CallService records a service call, applies failure rules, and updates the
// simulated entity state.
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})

	entityID, _ := data["entity_id"].(string)

	// Entity-specific rule wins over the blanket rule
	for _, key := range []string{failureKey(domain, service, entityID), failureKey(domain, service, "")} {
		rule, ok := m.failures[key]
		if !ok || rule.remaining == 0 {
			continue
		}
		if rule.remaining > 0 {
			rule.remaining--
		}
		return rule.err
	}

	if entityID != "" {
		m.applyServiceLocked(entityID, domain, service, data)
	}
	return nil
}

// applyServiceLocked mirrors the media_player state transitions HA would make
func (m *MockClient) applyServiceLocked(entityID, domain, service string, data map[string]interface{}) {
	prev := m.states[entityID]
	attrs := make(map[string]interface{})
	stateValue := "idle"
	if prev != nil {
		stateValue = prev.State
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
		stateValue = "idle"
	case (domain == "media_player" || domain == "music_assistant") && service == "play_media":
		stateValue = "playing"
		if override, ok := m.playStates[entityID]; ok {
			stateValue = override
		}
	default:
		return
	}

	m.setStateLocked(entityID, stateValue, attrs)
}

// GetServiceCalls returns all recorded service calls
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// ClearServiceCalls clears the service call history
func (m *MockClient) ClearServiceCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceCalls = make([]ServiceCall, 0)
}

// FilterServiceCalls returns the recorded calls matching domain and service
func (m *MockClient) FilterServiceCalls(domain, service string) []ServiceCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var calls []ServiceCall
	for _, call := range m.serviceCalls {
		if call.Domain == domain && call.Service == service {
			calls = append(calls, call)
		}
	}
	return calls
}
