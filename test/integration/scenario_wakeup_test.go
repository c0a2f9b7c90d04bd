// Package integration tests the wakeup lifecycle end to end against a mock
// Home Assistant WebSocket server, exercising the real client wire protocol.
package integration

import (
	"testing"
	"time"

	"wakeupmusic/internal/clock"
	"wakeupmusic/internal/config"
	"wakeupmusic/internal/wakeup"
	"wakeupmusic/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mondayMorning is a Monday used as the reference start time
var mondayMorning = time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC)

func wakeupConfig() *config.WakeupConfig {
	return &config.WakeupConfig{
		Days: map[string]config.DayConfig{
			"monday": {Active: true, Start: "06:20"},
		},
		MediaPlayers:  config.StringList{"media_player.bedroom"},
		MusicSource:   "spotify:playlist:abc123",
		InitialVolume: 0.1,
		TargetVolume:  0.5,
		RampDuration:  60,
		RampSteps:     4,
		PlayDuration:  300,
		Enqueue:       "replace",
	}
}

func TestScenario_WakeupLifecycle(t *testing.T) {
	env, err := testutil.NewTestEnv("localhost:18126", "test_token")
	require.NoError(t, err)
	defer env.Cleanup()

	env.Server.InitializePlayers("media_player.bedroom")

	clk := clock.NewMockClock(mondayMorning)
	mgr := wakeup.NewManager(env.Client, wakeupConfig(), clk, zap.NewNop(), false)
	require.NoError(t, mgr.Start())
	defer mgr.Stop()

	t.Log("GIVEN: A scheduled wakeup at 06:20 on an active day")
	status := mgr.Status()
	require.NotNil(t, status.NextStart, "Should have a scheduled start")

	t.Log("WHEN: The clock reaches the start time")
	clk.Advance(80 * time.Minute)

	t.Log("THEN: Playback starts at the initial volume")
	play := env.Server.FindServiceCall("media_player", "play_media", "media_player.bedroom")
	require.NotNil(t, play, "Should have started playback")
	assert.Equal(t, "https://open.spotify.com/playlist/abc123", play.ServiceData["media_content_id"])

	volume := env.Server.FindServiceCall("media_player", "volume_set", "media_player.bedroom")
	require.NotNil(t, volume, "Should have set the initial volume")
	assert.Equal(t, 0.1, volume.ServiceData["volume_level"])

	t.Log("WHEN: The verification delay and ramp duration elapse")
	clk.Advance(2*time.Second + 60*time.Second)

	t.Log("THEN: The volume ramp lands exactly on the target")
	latest := env.Server.FindServiceCall("media_player", "volume_set", "media_player.bedroom")
	require.NotNil(t, latest)
	assert.Equal(t, 0.5, latest.ServiceData["volume_level"])

	// Initial set plus four ramp steps
	assert.Equal(t, 5, env.Server.CountServiceCalls("media_player", "volume_set"))

	state := env.Server.GetState("media_player.bedroom")
	require.NotNil(t, state)
	assert.Equal(t, "playing", state.State)

	t.Log("WHEN: The play duration elapses")
	clk.Advance(300 * time.Second)

	t.Log("THEN: Playback fades out and stops")
	assert.Equal(t, 1, env.Server.CountServiceCalls("media_player", "media_stop"))
	assert.GreaterOrEqual(t, env.Server.CountServiceCalls("media_player", "volume_set"), 5+14,
		"Fade-out steps should have run before the stop")

	state = env.Server.GetState("media_player.bedroom")
	assert.Equal(t, "idle", state.State)
	assert.False(t, mgr.Status().Session.Playing)
	assert.False(t, mgr.Status().Session.ErrorState)
}

func TestScenario_StartRetryOverWire(t *testing.T) {
	env, err := testutil.NewTestEnv("localhost:18127", "test_token")
	require.NoError(t, err)
	defer env.Cleanup()

	env.Server.InitializePlayers("media_player.bedroom")

	t.Log("GIVEN: The first two playback requests fail at the server")
	env.Server.FailServiceTimes("media_player", "play_media", 2)

	clk := clock.NewMockClock(mondayMorning)
	mgr := wakeup.NewManager(env.Client, wakeupConfig(), clk, zap.NewNop(), false)
	require.NoError(t, mgr.Start())
	defer mgr.Stop()

	t.Log("WHEN: The wakeup fires")
	clk.Advance(80*time.Minute + 2*time.Second)

	t.Log("THEN: The third attempt succeeds and the event proceeds")
	assert.Equal(t, 3, env.Server.CountServiceCalls("media_player", "play_media"))
	assert.True(t, mgr.Status().Session.Playing)
	assert.Equal(t, []string{"media_player.bedroom"}, mgr.Status().Session.ActivePlayers)
}

func TestScenario_MusicAssistantRouting(t *testing.T) {
	env, err := testutil.NewTestEnv("localhost:18128", "test_token")
	require.NoError(t, err)
	defer env.Cleanup()

	env.Server.InitializePlayers("media_player.bedroom_mass")

	cfg := wakeupConfig()
	cfg.MediaPlayers = config.StringList{"media_player.bedroom_mass"}
	cfg.RadioMode = true

	clk := clock.NewMockClock(mondayMorning)
	mgr := wakeup.NewManager(env.Client, cfg, clk, zap.NewNop(), false)
	require.NoError(t, mgr.Start())
	defer mgr.Stop()

	t.Log("WHEN: The wakeup fires for a Music Assistant player")
	clk.Advance(80 * time.Minute)

	t.Log("THEN: Playback routes through the music_assistant service")
	play := env.Server.FindServiceCall("music_assistant", "play_media", "media_player.bedroom_mass")
	require.NotNil(t, play, "Should have called music_assistant.play_media")
	assert.Equal(t, "spotify://playlist/abc123", play.ServiceData["media_id"])
	assert.Equal(t, "replace", play.ServiceData["enqueue"])
	assert.Equal(t, true, play.ServiceData["radio_mode"])

	assert.Nil(t, env.Server.FindServiceCall("media_player", "play_media", ""),
		"Should not have used the generic play_media path")
}

func TestScenario_CalendarSuppressionOverWire(t *testing.T) {
	env, err := testutil.NewTestEnv("localhost:18129", "test_token")
	require.NoError(t, err)
	defer env.Cleanup()

	env.Server.InitializePlayers("media_player.bedroom")
	env.Server.SetState("calendar.vacation", "on", map[string]interface{}{})

	cfg := wakeupConfig()
	cfg.Calendar = "vacation"

	clk := clock.NewMockClock(mondayMorning)
	mgr := wakeup.NewManager(env.Client, cfg, clk, zap.NewNop(), false)
	require.NoError(t, mgr.Start())
	defer mgr.Stop()

	t.Log("THEN: The wakeup is suppressed for the day")
	assert.True(t, mgr.Status().Suppressed)

	clk.Advance(3 * time.Hour)
	assert.Equal(t, 0, env.Server.CountServiceCalls("media_player", "play_media"))
}
