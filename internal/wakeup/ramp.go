package wakeup

import (
	"time"

	"go.uber.org/zap"

	"wakeupmusic/internal/player"
)

// rampState carries the volume ramp across timer ticks
type rampState struct {
	current   float64
	step      int
	steps     int
	increment float64
	interval  time.Duration
	turnoff   *time.Time
	log       *zap.Logger
}

// startRampLocked begins the stepped volume ramp from initial to target
// volume. A non-positive or inverted ramp jumps straight to the target.
func (m *Manager) startRampLocked(turnoff *time.Time, log *zap.Logger) {
	initial := m.cfg.InitialVolume
	target := m.cfg.TargetVolume
	steps := m.cfg.RampSteps
	duration := time.Duration(m.cfg.RampDuration) * time.Second

	if target <= initial || steps <= 0 || duration <= 0 {
		log.Info("Skipping volume ramp",
			zap.Float64("initial_volume", initial),
			zap.Float64("target_volume", target))
		m.setAllVolumes(target, log)
		m.finishRampLocked(turnoff, log)
		return
	}

	interval := duration / time.Duration(steps)
	if interval < minStepInterval {
		log.Warn("Ramp step interval too short, clamping",
			zap.Duration("computed", interval),
			zap.Duration("minimum", minStepInterval))
		interval = minStepInterval
	}

	log.Info("Starting volume ramp",
		zap.Float64("initial_volume", initial),
		zap.Float64("target_volume", target),
		zap.Int("steps", steps),
		zap.Duration("interval", interval))

	r := &rampState{
		current:   initial,
		steps:     steps,
		increment: (target - initial) / float64(steps),
		interval:  interval,
		turnoff:   turnoff,
		log:       log,
	}
	m.rampTimer = cancelTimer(m.rampTimer)
	m.rampTimer = m.clk.AfterFunc(interval, func() { m.onRampTick(r) })
}

func (m *Manager) onRampTick(r *rampState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rampTimer = nil

	if !m.session.IsPlaying() {
		r.log.Info("Playback no longer active, abandoning volume ramp")
		return
	}

	r.step++
	if r.step >= r.steps {
		// Land exactly on the target regardless of float accumulation
		r.current = m.cfg.TargetVolume
	} else {
		r.current += r.increment
	}
	m.setAllVolumes(r.current, r.log)

	if r.step >= r.steps {
		r.log.Info("Volume ramp complete", zap.Float64("volume", r.current))
		m.finishRampLocked(r.turnoff, r.log)
		return
	}
	m.rampTimer = m.clk.AfterFunc(r.interval, func() { m.onRampTick(r) })
}

// finishRampLocked runs once the ramp lands on the target: the event is
// considered healthy, a completion check is queued, and the stop is scheduled.
func (m *Manager) finishRampLocked(turnoff *time.Time, log *zap.Logger) {
	m.session.ClearError()
	m.scheduleCompletionCheck(log)
	m.schedulePlaybackStopLocked(turnoff, log)
}

// setAllVolumes applies one volume level to every configured player,
// best-effort. Players that failed to start are included; a volume change on
// a stopped player is harmless.
func (m *Manager) setAllVolumes(volume float64, log *zap.Logger) {
	for _, entityID := range m.cfg.MediaPlayers {
		if err := m.controller.SetVolume(entityID, volume); err != nil {
			log.Warn("Error setting volume",
				zap.String("entity_id", entityID),
				zap.Float64("volume", volume),
				zap.Error(err))
		}
	}
}

// scheduleCompletionCheck queues a log-only health check shortly after the
// ramp completes. Playback having stopped on every player this early usually
// means the source finished or the start silently failed.
func (m *Manager) scheduleCompletionCheck(log *zap.Logger) {
	m.completionTimer = cancelTimer(m.completionTimer)
	m.completionTimer = m.clk.AfterFunc(completionCheckDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.completionTimer = nil

		if !m.session.IsPlaying() {
			return
		}
		allStopped := true
		for _, entityID := range m.session.ActivePlayers() {
			state, err := m.controller.State(entityID)
			if err != nil {
				allStopped = false
				continue
			}
			if !player.IsStoppedState(state) && state != "paused" {
				allStopped = false
			}
		}
		if allStopped {
			log.Warn("All players stopped shortly after volume ramp completed")
		}
	})
}
