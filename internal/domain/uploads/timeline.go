package uploads

import "time"

// TimeProvider abstracts time operations so tests can control the clock.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
}

// realTimeProvider provides actual system time.
type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

// NewTimeProvider creates a provider backed by the system clock.
func NewTimeProvider() TimeProvider { return realTimeProvider{} }

// Timeline tracks temporal aspects of job and item lifecycles.
type Timeline struct {
	startedAt   time.Time
	completedAt time.Time
	lastUpdate  time.Time

	timeProvider TimeProvider
}

// NewTimeline creates a new timeline using the provided time provider.
// StartedAt remains zero until MarkStarted is called.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	return &Timeline{
		lastUpdate:   timeProvider.Now(),
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline creates a timeline from persisted timestamps.
func ReconstructTimeline(startedAt, completedAt, lastUpdate time.Time) *Timeline {
	return &Timeline{
		startedAt:    startedAt,
		completedAt:  completedAt,
		lastUpdate:   lastUpdate,
		timeProvider: NewTimeProvider(),
	}
}

// StartedAt returns when work started.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// CompletedAt returns when work finished.
func (t *Timeline) CompletedAt() time.Time { return t.completedAt }

// LastUpdate returns the most recent activity timestamp.
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }

// MarkStarted records the start time and touches the last update.
func (t *Timeline) MarkStarted() {
	now := t.timeProvider.Now()
	t.startedAt = now
	t.lastUpdate = now
}

// MarkCompleted records the completion time and touches the last update.
func (t *Timeline) MarkCompleted() {
	now := t.timeProvider.Now()
	t.completedAt = now
	t.lastUpdate = now
}

// UpdateLastUpdate touches the last update timestamp.
func (t *Timeline) UpdateLastUpdate() {
	t.lastUpdate = t.timeProvider.Now()
}
