package testutil

import (
	"fmt"

	"wakeupmusic/internal/ha"

	"go.uber.org/zap"
)

// TestEnv provides a mock HA server with a connected WebSocket client, for
// integration tests that exercise the real wire protocol end to end.
type TestEnv struct {
	Server *MockHAServer
	Client *ha.Client
	Logger *zap.Logger
}

// NewTestEnv starts a mock HA server on addr and connects a client to it.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("localhost:18123", "test_token")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
func NewTestEnv(addr, token string) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	server := NewMockHAServer(addr, token)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock server: %w", err)
	}

	client := ha.NewClient(fmt.Sprintf("ws://%s/api/websocket", addr), token, logger)
	if err := client.Connect(); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}

	return &TestEnv{
		Server: server,
		Client: client,
		Logger: logger,
	}, nil
}

// Cleanup stops the client and server in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.Client != nil {
		e.Client.Disconnect()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
}
