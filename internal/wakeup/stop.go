package wakeup

import (
	"time"

	"go.uber.org/zap"
)

// schedulePlaybackStopLocked arbitrates between the day's turnoff time and
// the configured play duration. A turnoff time always wins; without one the
// play duration counts from ramp completion, and zero means play forever.
func (m *Manager) schedulePlaybackStopLocked(turnoff *time.Time, log *zap.Logger) {
	m.stopTimer = cancelTimer(m.stopTimer)

	now := m.clk.Now()

	if turnoff != nil {
		delay := turnoff.Sub(now)
		switch {
		case delay <= 0:
			log.Info("Turnoff time already passed, stopping playback now")
			m.stopPlaybackLocked(log)
		case delay <= fadeoutDuration:
			log.Info("Turnoff time within fade-out window, starting fade-out now",
				zap.Time("turnoff", *turnoff))
			m.startFadeoutLocked(log)
			m.installStopTimer(delay, log)
		default:
			log.Info("Scheduling playback stop at turnoff time",
				zap.Time("turnoff", *turnoff),
				zap.Duration("delay", delay))
			m.installFadeTimer(delay-fadeoutDuration, log)
			m.installStopTimer(delay, log)
		}
		return
	}

	if m.cfg.PlayDuration <= 0 {
		log.Info("No turnoff time or play duration configured, playing indefinitely")
		return
	}

	delay := time.Duration(m.cfg.PlayDuration) * time.Second
	log.Info("Scheduling playback stop after play duration",
		zap.Duration("delay", delay))
	if delay > fadeoutDuration {
		m.installFadeTimer(delay-fadeoutDuration, log)
	}
	m.installStopTimer(delay, log)
}

func (m *Manager) installFadeTimer(delay time.Duration, log *zap.Logger) {
	m.fadeTimer = cancelTimer(m.fadeTimer)
	m.fadeTimer = m.clk.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.fadeTimer = nil
		m.startFadeoutLocked(log)
	})
}

func (m *Manager) installStopTimer(delay time.Duration, log *zap.Logger) {
	m.stopTimer = m.clk.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stopTimer = nil
		m.stopPlaybackLocked(log)
	})
}

// stopPlaybackLocked stops every configured player and closes the session.
// Best-effort: a stop failure on one player does not skip the rest.
func (m *Manager) stopPlaybackLocked(log *zap.Logger) {
	if !m.session.IsPlaying() {
		return
	}

	m.fadeTimer = cancelTimer(m.fadeTimer)
	m.completionTimer = cancelTimer(m.completionTimer)

	log.Info("Stopping wakeup music")
	for _, entityID := range m.cfg.MediaPlayers {
		if err := m.controller.Stop(entityID); err != nil {
			log.Warn("Error stopping playback",
				zap.String("entity_id", entityID),
				zap.Error(err))
			continue
		}
		log.Info("Stopped playback", zap.String("entity_id", entityID))
	}
	m.session.Finish()
}
