package wakeup

import (
	"strings"
	"sync"

	"wakeupmusic/internal/ha"

	"go.uber.org/zap"
)

// SuppressionCache caches the daily calendar-exception check. The calendar is
// queried once per day at the fixed check time and whenever the day schedule
// is recomputed; every schedule decision in between reads the cached value.
type SuppressionCache struct {
	client   ha.HAClient
	calendar string
	logger   *zap.Logger

	mu     sync.Mutex
	active bool
}

// NewSuppressionCache creates a SuppressionCache for the given calendar
// source. An empty calendar name means suppression is never active.
func NewSuppressionCache(client ha.HAClient, calendar string, logger *zap.Logger) *SuppressionCache {
	return &SuppressionCache{
		client:   client,
		calendar: calendar,
		logger:   logger.Named("suppression"),
	}
}

// calendarEntity accepts both "calendar.xxx" and bare "xxx" forms
func (s *SuppressionCache) calendarEntity() string {
	if strings.HasPrefix(s.calendar, "calendar.") {
		return s.calendar
	}
	return "calendar." + s.calendar
}

// Refresh re-evaluates the suppression signal and caches the result. Any
// calendar state other than "off" counts as an active exception, including
// an unreadable calendar.
func (s *SuppressionCache) Refresh() {
	active := false
	if s.calendar != "" {
		entity := s.calendarEntity()
		state, err := s.client.GetState(entity)
		if err != nil {
			s.logger.Warn("Could not read calendar state, treating exception as active",
				zap.String("entity_id", entity),
				zap.Error(err))
			active = true
		} else {
			active = state.State != "off"
		}
	}

	s.mu.Lock()
	s.active = active
	s.mu.Unlock()

	if active {
		s.logger.Info("Calendar exception active")
	}
}

// IsSuppressed returns the cached suppression state
func (s *SuppressionCache) IsSuppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
