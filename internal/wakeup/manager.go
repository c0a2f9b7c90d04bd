// Package wakeup implements the wake-with-music playback lifecycle: day
// scheduling, suppression, start with retry, playback verification, volume
// ramp, fade-out, and stop scheduling.
package wakeup

import (
	"sync"
	"time"

	"wakeupmusic/internal/clock"
	"wakeupmusic/internal/config"
	"wakeupmusic/internal/ha"
	"wakeupmusic/internal/player"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// Attempts per player before a start is reported as failed
	maxStartAttempts = 3
	// Delay before playback verification, and between the two attempts,
	// to allow device state to converge after the start request returns
	verifyDelay = 2 * time.Second
	// Ramp and fade-out ticks never run faster than this
	minStepInterval = 100 * time.Millisecond
	// Post-ramp delay before the playback completion check
	completionCheckDelay = 5 * time.Second

	// Cron expressions for the daily triggers: the calendar exception check
	// and the schedule rollover to the new day
	suppressionCheckSpec = "30 3 * * *"
	dayRolloverSpec      = "1 0 * * *"
)

// Manager is the wake event orchestrator. Every timer callback is serialized
// through one mutex, so the lifecycle runs as a sequence of atomic steps and
// stale callbacks observe superseding state instead of racing it.
type Manager struct {
	client      ha.HAClient
	cfg         *config.WakeupConfig
	classifier  *player.Classifier
	controller  *player.Controller
	suppression *SuppressionCache
	clk         clock.Clock
	logger      *zap.Logger
	readOnly    bool
	cron        *cron.Cron

	mu        sync.Mutex
	session   *Session
	nextStart *time.Time

	// One live timer per role; installing a new one cancels the old first
	dayTimer        clock.Timer
	verifyTimer     clock.Timer
	rampTimer       clock.Timer
	fadeTimer       clock.Timer
	stopTimer       clock.Timer
	completionTimer clock.Timer
}

// NewManager creates a new wakeup Manager. The clock is injectable so tests
// can drive the timer chain manually.
func NewManager(client ha.HAClient, cfg *config.WakeupConfig, clk clock.Clock, logger *zap.Logger, readOnly bool) *Manager {
	named := logger.Named("wakeup")
	return &Manager{
		client:      client,
		cfg:         cfg,
		classifier:  player.NewClassifier(client, cfg.UseMusicAssistant, named),
		controller:  player.NewController(client, named),
		suppression: NewSuppressionCache(client, cfg.Calendar, named),
		clk:         clk,
		logger:      named,
		readOnly:    readOnly,
		cron:        cron.New(),
		session:     NewSession(),
	}
}

// Start validates the configured entities, computes today's schedule, and
// installs the daily cron triggers.
func (m *Manager) Start() error {
	m.logger.Info("Starting Wakeup Manager",
		zap.Strings("media_players", m.cfg.MediaPlayers),
		zap.String("source_type", string(player.DetectSourceType(m.cfg.MusicSource))),
		zap.Float64("initial_volume", m.cfg.InitialVolume),
		zap.Float64("target_volume", m.cfg.TargetVolume),
		zap.Int("ramp_duration", m.cfg.RampDuration),
		zap.Int("play_duration", m.cfg.PlayDuration))

	m.validateEntities()
	m.logPlayerKinds()

	// Honor a suppression change present at startup, then compute the day
	m.RefreshSuppression()

	if m.cfg.Calendar != "" {
		if _, err := m.cron.AddFunc(suppressionCheckSpec, m.RefreshSuppression); err != nil {
			return err
		}
	}
	if _, err := m.cron.AddFunc(dayRolloverSpec, m.RefreshSuppression); err != nil {
		return err
	}
	m.cron.Start()

	m.logger.Info("Wakeup Manager started successfully")
	return nil
}

// Stop cancels the daily triggers and every live timer
func (m *Manager) Stop() {
	m.logger.Info("Stopping Wakeup Manager")
	m.cron.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayTimer = cancelTimer(m.dayTimer)
	m.verifyTimer = cancelTimer(m.verifyTimer)
	m.rampTimer = cancelTimer(m.rampTimer)
	m.fadeTimer = cancelTimer(m.fadeTimer)
	m.stopTimer = cancelTimer(m.stopTimer)
	m.completionTimer = cancelTimer(m.completionTimer)

	m.logger.Info("Wakeup Manager stopped")
}

// RefreshSuppression re-evaluates the calendar exception and recomputes the
// day schedule with the fresh value.
func (m *Manager) RefreshSuppression() {
	m.suppression.Refresh()
	m.SetupDaySchedule()
}

// SetupDaySchedule computes today's schedule and installs the start timer.
// Safe to call repeatedly; a pending start timer is replaced.
func (m *Manager) SetupDaySchedule() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupDayScheduleLocked()
}

func (m *Manager) setupDayScheduleLocked() {
	m.dayTimer = cancelTimer(m.dayTimer)
	m.nextStart = nil

	if m.suppression.IsSuppressed() {
		return
	}

	now := m.clk.Now()
	schedule, err := resolveToday(m.cfg.Days, now)
	if err != nil {
		m.logger.Error("Error parsing time format for today", zap.Error(err))
		return
	}
	if schedule == nil {
		return
	}

	switch {
	case now.Before(schedule.Start):
		delay := schedule.Start.Sub(now)
		m.logger.Info("Scheduling music start",
			zap.Duration("delay", delay),
			zap.Time("start", schedule.Start))
		start := schedule.Start
		m.nextStart = &start
		m.dayTimer = m.clk.AfterFunc(delay, m.onDayTimer)

	case schedule.Turnoff != nil && !now.Before(*schedule.Turnoff):
		// Past turnoff time, the window has already closed

	default:
		m.logger.Info("Starting wakeup music immediately")
		m.startWakeupLocked()
	}
}

func (m *Manager) onDayTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayTimer = nil
	m.nextStart = nil
	m.startWakeupLocked()
}

// TriggerWakeup starts the wake event immediately, subject to the session
// gate. Exposed for manual triggering.
func (m *Manager) TriggerWakeup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startWakeupLocked()
}

// startWakeupLocked runs the wake-event start sequence: claim the session,
// stop stale playback, start every configured player, then schedule
// verification.
func (m *Manager) startWakeupLocked() {
	eventID := uuid.NewString()
	if !m.session.Begin(eventID) {
		m.logger.Info("Wakeup music already playing, skipping")
		return
	}
	log := m.logger.With(zap.String("event_id", eventID))

	// Cancel any leftover stop or fade-out from a previous event
	m.stopTimer = cancelTimer(m.stopTimer)
	m.fadeTimer = cancelTimer(m.fadeTimer)

	if m.readOnly {
		log.Info("[READ-ONLY] Would start wakeup music")
		m.session.Finish()
		return
	}

	// Resolve today's turnoff for the stop scheduler
	var turnoff *time.Time
	if schedule, err := resolveToday(m.cfg.Days, m.clk.Now()); err != nil {
		log.Error("Error parsing time format for today", zap.Error(err))
	} else if schedule != nil {
		turnoff = schedule.Turnoff
	}

	m.stopExistingPlayback(log)

	log.Info("Attempting to start playback",
		zap.Int("players", len(m.cfg.MediaPlayers)))

	for _, entityID := range m.cfg.MediaPlayers {
		if m.startPlayer(entityID, log) {
			m.session.AddActivePlayer(entityID)
			log.Info("Started playback", zap.String("entity_id", entityID))
		} else {
			log.Warn("Failed to start playback", zap.String("entity_id", entityID))
		}
	}

	active := m.session.ActivePlayers()
	log.Info("Playback start summary",
		zap.Int("started", len(active)),
		zap.Int("configured", len(m.cfg.MediaPlayers)),
		zap.Strings("active_players", active))

	if len(active) == 0 {
		log.Error("No media players started successfully, aborting wakeup music")
		m.session.Abort()
		return
	}

	log.Info("Scheduling playback verification", zap.Duration("delay", verifyDelay))
	m.verifyTimer = m.clk.AfterFunc(verifyDelay, func() {
		m.onVerifyTimer(turnoff, 1, log)
	})
}

// startPlayer starts playback on one player with bounded retry. Each attempt
// runs the full sequence: set initial volume, classify, normalize, play.
func (m *Manager) startPlayer(entityID string, log *zap.Logger) bool {
	for attempt := 1; attempt <= maxStartAttempts; attempt++ {
		err := m.tryStartPlayer(entityID)
		if err == nil {
			return true
		}

		kind := player.ClassifyFailure(err)
		if attempt < maxStartAttempts {
			log.Warn("Playback start failed, retrying",
				zap.String("entity_id", entityID),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxStartAttempts),
				zap.String("failure_kind", kind.String()),
				zap.Error(err))
		} else {
			log.Error("Playback start failed",
				zap.String("entity_id", entityID),
				zap.Int("attempt", attempt),
				zap.String("failure_kind", kind.String()),
				zap.Error(err))
		}
	}
	return false
}

func (m *Manager) tryStartPlayer(entityID string) error {
	if err := m.controller.SetVolume(entityID, m.cfg.InitialVolume); err != nil {
		return err
	}

	kind := m.classifier.Classify(entityID)
	source := player.Normalize(m.cfg.MusicSource, kind)

	return m.controller.Play(entityID, source, kind, player.PlayOptions{
		Enqueue:       m.cfg.Enqueue,
		RadioMode:     m.cfg.RadioMode,
		MediaType:     m.cfg.MediaType,
		ConfigEntryID: m.cfg.MusicAssistantConfigEntryID,
	})
}

// stopExistingPlayback stops any player that is already playing something.
// Best-effort: failures are logged and do not block the start sequence.
func (m *Manager) stopExistingPlayback(log *zap.Logger) {
	for _, entityID := range m.cfg.MediaPlayers {
		state, err := m.controller.State(entityID)
		if err != nil {
			log.Warn("Error checking playback state",
				zap.String("entity_id", entityID),
				zap.Error(err))
			continue
		}
		if state == "" || state == "idle" || state == "off" || state == "unavailable" {
			continue
		}
		if err := m.controller.Stop(entityID); err != nil {
			log.Warn("Error stopping existing playback",
				zap.String("entity_id", entityID),
				zap.Error(err))
			continue
		}
		log.Info("Stopped existing playback", zap.String("entity_id", entityID))
	}
}

// onVerifyTimer verifies playback and starts the ramp, or retries once after
// an equal delay. A second failure abandons the session.
func (m *Manager) onVerifyTimer(turnoff *time.Time, attempt int, log *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTimer = nil

	if !m.session.IsPlaying() {
		return
	}

	if m.verifyPlayback(log) {
		log.Info("Playback verified successfully, starting volume ramp",
			zap.Int("attempt", attempt))
		m.startRampLocked(turnoff, log)
		return
	}

	if attempt == 1 {
		log.Warn("Playback not yet started, retrying verification",
			zap.Duration("delay", verifyDelay))
		m.verifyTimer = m.clk.AfterFunc(verifyDelay, func() {
			m.onVerifyTimer(turnoff, 2, log)
		})
		return
	}

	log.Error("Playback verification failed after retries, aborting")
	m.session.Abort()
}

// verifyPlayback confirms playback began on at least one active player.
// Standard players must report an active state; Music Assistant players are
// trusted unless they report a definitively stopped state, since the start
// request already returned without error. If every state read fails the
// verification is treated as passed rather than aborting a likely-fine event.
func (m *Manager) verifyPlayback(log *zap.Logger) bool {
	players := m.session.ActivePlayers()
	if len(players) == 0 {
		log.Warn("No active media players to verify")
		return false
	}

	readFailed := 0
	for _, entityID := range players {
		state, err := m.controller.State(entityID)
		if err != nil {
			log.Warn("Error checking player state",
				zap.String("entity_id", entityID),
				zap.Error(err))
			readFailed++
			continue
		}

		if player.IsActiveState(state) {
			log.Info("Verified playback started",
				zap.String("entity_id", entityID),
				zap.String("state", state))
			return true
		}

		if m.classifier.Classify(entityID) == player.ManagedService && !player.IsStoppedState(state) {
			log.Info("Music Assistant player not in a stopped state, assuming playback started",
				zap.String("entity_id", entityID),
				zap.String("state", state))
			return true
		}

		log.Warn("Player not in a playing state",
			zap.String("entity_id", entityID),
			zap.String("state", state))
	}

	if readFailed == len(players) {
		log.Warn("Could not read any player state, assuming playback success")
		return true
	}

	return false
}

// validateEntities warns about configured players unknown to Home Assistant
func (m *Manager) validateEntities() {
	for _, entityID := range m.cfg.MediaPlayers {
		if _, err := m.client.GetState(entityID); err != nil {
			m.logger.Warn("Entity not found in Home Assistant",
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
	}
}

// logPlayerKinds logs the detected capability class per player and sanity
// checks Music Assistant naming against the platform attribute.
func (m *Manager) logPlayerKinds() {
	var managed, standard []string
	for _, entityID := range m.cfg.MediaPlayers {
		if m.classifier.Classify(entityID) == player.ManagedService {
			managed = append(managed, entityID)
			m.classifier.CheckPlatform(entityID)
		} else {
			standard = append(standard, entityID)
		}
	}
	if len(managed) > 0 {
		m.logger.Info("Detected Music Assistant players", zap.Strings("players", managed))
	}
	if len(standard) > 0 {
		m.logger.Info("Detected standard media players", zap.Strings("players", standard))
	}
}

// ManagerStatus is the status API view of the orchestrator
type ManagerStatus struct {
	Session    Status     `json:"session"`
	Suppressed bool       `json:"suppressed"`
	NextStart  *time.Time `json:"next_start,omitempty"`
}

// Status returns a snapshot for the status API
func (m *Manager) Status() ManagerStatus {
	m.mu.Lock()
	var next *time.Time
	if m.nextStart != nil {
		t := *m.nextStart
		next = &t
	}
	m.mu.Unlock()

	return ManagerStatus{
		Session:    m.session.Snapshot(),
		Suppressed: m.suppression.IsSuppressed(),
		NextStart:  next,
	}
}

// cancelTimer stops a timer if live and returns the cleared handle
func cancelTimer(t clock.Timer) clock.Timer {
	if t != nil {
		t.Stop()
	}
	return nil
}
