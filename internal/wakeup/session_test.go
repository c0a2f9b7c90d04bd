package wakeup

import "testing"

func TestSession_BeginGate(t *testing.T) {
	s := NewSession()

	if !s.Begin("event-1") {
		t.Fatal("Expected first Begin to succeed")
	}
	if s.Begin("event-2") {
		t.Error("Expected Begin to fail while playing")
	}
	if !s.IsPlaying() {
		t.Error("Expected session to be playing")
	}

	s.Finish()
	if !s.Begin("event-3") {
		t.Error("Expected Begin to succeed after Finish")
	}
}

func TestSession_BeginResetsState(t *testing.T) {
	s := NewSession()

	s.Begin("event-1")
	s.AddActivePlayer("media_player.bedroom")
	s.Abort()

	if !s.ErrorState() {
		t.Fatal("Expected error state after Abort")
	}

	if !s.Begin("event-2") {
		t.Fatal("Expected Begin to succeed after Abort")
	}
	if s.ErrorState() {
		t.Error("Expected Begin to clear the error state")
	}
	if len(s.ActivePlayers()) != 0 {
		t.Error("Expected Begin to reset active players")
	}
}

func TestSession_AbortKeepsActivePlayers(t *testing.T) {
	s := NewSession()

	s.Begin("event-1")
	s.AddActivePlayer("media_player.bedroom")
	s.Abort()

	if s.IsPlaying() {
		t.Error("Expected session not playing after Abort")
	}
	// Players that did start are not forgotten by an abort
	if len(s.ActivePlayers()) != 1 {
		t.Errorf("Expected 1 active player after Abort, got %d", len(s.ActivePlayers()))
	}
}

func TestSession_Finish(t *testing.T) {
	s := NewSession()

	s.Begin("event-1")
	s.AddActivePlayer("media_player.bedroom")
	s.Finish()

	if s.IsPlaying() {
		t.Error("Expected session not playing after Finish")
	}
	if s.ErrorState() {
		t.Error("Expected no error state after Finish")
	}
	if len(s.ActivePlayers()) != 0 {
		t.Error("Expected active players cleared after Finish")
	}
}

func TestSession_Snapshot(t *testing.T) {
	s := NewSession()

	s.Begin("event-1")
	s.AddActivePlayer("media_player.bedroom")
	s.AddActivePlayer("media_player.kitchen")

	status := s.Snapshot()
	if status.EventID != "event-1" {
		t.Errorf("Unexpected event ID: %q", status.EventID)
	}
	if !status.Playing {
		t.Error("Expected playing in snapshot")
	}
	if len(status.ActivePlayers) != 2 {
		t.Errorf("Expected 2 active players, got %d", len(status.ActivePlayers))
	}

	// Snapshot is a copy, mutating it does not affect the session
	status.ActivePlayers[0] = "media_player.other"
	if s.ActivePlayers()[0] != "media_player.bedroom" {
		t.Error("Snapshot aliased the session's player slice")
	}
}

func TestSession_ClearError(t *testing.T) {
	s := NewSession()

	s.Begin("event-1")
	s.Abort()
	s.ClearError()

	if s.ErrorState() {
		t.Error("Expected error state cleared")
	}
}
