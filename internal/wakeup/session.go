package wakeup

import "sync"

// Session tracks the at-most-one active wake event. All transitions are
// guarded by a mutex because timer callbacks fire on their own goroutines.
type Session struct {
	mu            sync.Mutex
	eventID       string
	playing       bool
	errorState    bool
	activePlayers []string
}

// Status is a point-in-time snapshot of the session
type Status struct {
	EventID       string   `json:"event_id,omitempty"`
	Playing       bool     `json:"playing"`
	ErrorState    bool     `json:"error_state"`
	ActivePlayers []string `json:"active_players"`
}

// NewSession creates an idle session
func NewSession() *Session {
	return &Session{}
}

// Begin atomically claims the session for a new wake event. It returns false
// if a wake event is already running. On success the error state and active
// player set are reset.
func (s *Session) Begin(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return false
	}
	s.playing = true
	s.errorState = false
	s.eventID = eventID
	s.activePlayers = nil
	return true
}

// Abort marks the wake event failed and releases the session. The active
// player set is left as-is: players that did start are not implicitly
// stopped by an abort.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.errorState = true
}

// Finish resets the session to idle after a clean stop
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.errorState = false
	s.activePlayers = nil
}

// AddActivePlayer records a player that started successfully
func (s *Session) AddActivePlayer(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePlayers = append(s.activePlayers, entityID)
}

// ClearActivePlayers empties the active player set
func (s *Session) ClearActivePlayers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePlayers = nil
}

// ActivePlayers returns a copy of the active player set
func (s *Session) ActivePlayers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]string, len(s.activePlayers))
	copy(players, s.activePlayers)
	return players
}

// IsPlaying reports whether a wake event is currently running
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// ErrorState reports whether the last wake event ended in failure
func (s *Session) ErrorState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorState
}

// ClearError clears the error flag
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorState = false
}

// Snapshot returns the current session status
func (s *Session) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]string, len(s.activePlayers))
	copy(players, s.activePlayers)
	return Status{
		EventID:       s.eventID,
		Playing:       s.playing,
		ErrorState:    s.errorState,
		ActivePlayers: players,
	}
}
