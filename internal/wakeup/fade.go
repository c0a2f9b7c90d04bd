package wakeup

import (
	"time"

	"go.uber.org/zap"
)

const (
	fadeoutDuration = 60 * time.Second
	fadeoutSteps    = 15
	fadeoutFloor    = 0.01
)

// fadeState carries the fade-out across timer ticks
type fadeState struct {
	current   float64
	step      int
	decrement float64
	interval  time.Duration
	log       *zap.Logger
}

// startFadeoutLocked begins the stepped fade-out toward the volume floor.
// The starting level is read from the first configured player; if that read
// fails the configured target volume is assumed.
func (m *Manager) startFadeoutLocked(log *zap.Logger) {
	if !m.session.IsPlaying() {
		return
	}

	current := m.cfg.TargetVolume
	if len(m.cfg.MediaPlayers) > 0 {
		if v, ok := m.controller.Volume(m.cfg.MediaPlayers[0]); ok {
			current = v
		} else {
			log.Warn("Could not read current volume, assuming target volume",
				zap.Float64("assumed", current))
		}
	}

	if current <= fadeoutFloor {
		log.Info("Volume already at floor, skipping fade-out",
			zap.Float64("volume", current))
		return
	}

	interval := fadeoutDuration / time.Duration(fadeoutSteps)
	log.Info("Starting volume fade-out",
		zap.Float64("from", current),
		zap.Duration("duration", fadeoutDuration),
		zap.Int("steps", fadeoutSteps))

	f := &fadeState{
		current:   current,
		decrement: (current - fadeoutFloor) / float64(fadeoutSteps),
		interval:  interval,
		log:       log,
	}
	m.fadeTimer = cancelTimer(m.fadeTimer)
	m.fadeTimer = m.clk.AfterFunc(interval, func() { m.onFadeTick(f) })
}

func (m *Manager) onFadeTick(f *fadeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fadeTimer = nil

	if !m.session.IsPlaying() {
		f.log.Info("Playback no longer active, abandoning fade-out")
		return
	}

	f.step++
	f.current -= f.decrement
	if f.current < fadeoutFloor {
		f.current = fadeoutFloor
	}
	m.setAllVolumes(f.current, f.log)

	if f.step >= fadeoutSteps {
		f.log.Info("Fade-out complete", zap.Float64("volume", f.current))
		return
	}
	m.fadeTimer = m.clk.AfterFunc(f.interval, func() { m.onFadeTick(f) })
}
