package ha

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockHAServer creates a mock Home Assistant WebSocket server
func mockHAServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("Failed to upgrade connection: %v", err)
		}
		defer conn.Close()

		handler(conn)
	}))
}

// standardAuthFlow handles the standard authentication flow
func standardAuthFlow(t *testing.T, conn *websocket.Conn, token string) {
	// Send auth_required
	err := conn.WriteJSON(Message{Type: "auth_required"})
	require.NoError(t, err)

	// Receive auth message
	var authMsg AuthMessage
	err = conn.ReadJSON(&authMsg)
	require.NoError(t, err)
	assert.Equal(t, "auth", authMsg.Type)
	assert.Equal(t, token, authMsg.AccessToken)

	// Send auth_ok
	err = conn.WriteJSON(Message{Type: "auth_ok"})
	require.NoError(t, err)
}

func TestClient_Connect(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	t.Run("successful connection", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)

			// Keep connection open
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)

		err := client.Connect()
		assert.NoError(t, err)
		assert.True(t, client.IsConnected())

		client.Disconnect()
	})

	t.Run("invalid token", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			// Send auth_required
			conn.WriteJSON(Message{Type: "auth_required"})

			// Receive auth message
			var authMsg AuthMessage
			conn.ReadJSON(&authMsg)

			// Send auth_invalid
			conn.WriteJSON(Message{Type: "auth_invalid"})
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, "wrong_token", logger)

		err := client.Connect()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "authentication failed")
		assert.False(t, client.IsConnected())
	})

	t.Run("double connect", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)

		require.NoError(t, client.Connect())
		err := client.Connect()
		assert.Error(t, err)

		client.Disconnect()
	})
}

func TestClient_GetAllStates(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)

		// Receive get_states request
		var req GetStatesRequest
		err := conn.ReadJSON(&req)
		require.NoError(t, err)
		assert.Equal(t, "get_states", req.Type)

		states := []*State{
			{EntityID: "media_player.bedroom", State: "idle", Attributes: map[string]interface{}{
				"volume_level": 0.25,
			}},
			{EntityID: "calendar.vacation", State: "off", Attributes: map[string]interface{}{}},
		}
		statesJSON, _ := json.Marshal(states)

		success := true
		conn.WriteJSON(Message{
			ID:      req.ID,
			Type:    "result",
			Success: &success,
			Result:  statesJSON,
		})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, token, logger)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	states, err := client.GetAllStates()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "media_player.bedroom", states[0].EntityID)

	volume, ok := states[0].FloatAttr("volume_level")
	assert.True(t, ok)
	assert.Equal(t, 0.25, volume)
}

func TestClient_CallService(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	t.Run("successful call", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)

			var req CallServiceRequest
			err := conn.ReadJSON(&req)
			require.NoError(t, err)
			assert.Equal(t, "call_service", req.Type)
			assert.Equal(t, "media_player", req.Domain)
			assert.Equal(t, "volume_set", req.Service)
			assert.Equal(t, "media_player.bedroom", req.ServiceData["entity_id"])

			success := true
			conn.WriteJSON(Message{
				ID:      req.ID,
				Type:    "result",
				Success: &success,
			})

			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)
		require.NoError(t, client.Connect())
		defer client.Disconnect()

		err := client.CallService("media_player", "volume_set", map[string]interface{}{
			"entity_id":    "media_player.bedroom",
			"volume_level": 0.1,
		})
		assert.NoError(t, err)
	})

	t.Run("service error", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)

			var req CallServiceRequest
			conn.ReadJSON(&req)

			success := false
			conn.WriteJSON(Message{
				ID:      req.ID,
				Type:    "result",
				Success: &success,
				Error:   &Error{Code: "not_found", Message: "Service not found"},
			})

			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)
		require.NoError(t, client.Connect())
		defer client.Disconnect()

		err := client.CallService("music_assistant", "play_media", map[string]interface{}{
			"entity_id": "media_player.bedroom_mass",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not_found")
	})
}

func TestClient_NotConnected(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewClient("ws://localhost:1/api/websocket", "token", logger)

	_, err := client.GetAllStates()
	assert.Error(t, err)

	err = client.CallService("media_player", "media_stop", map[string]interface{}{
		"entity_id": "media_player.bedroom",
	})
	assert.Error(t, err)
}
