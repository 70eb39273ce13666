package uploads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimelineLifecycle(t *testing.T) {
	provider := &mockTimeProvider{now: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)}

	tl := NewTimeline(provider)
	assert.True(t, tl.StartedAt().IsZero())
	assert.Equal(t, provider.now, tl.LastUpdate())

	provider.Advance(time.Minute)
	tl.MarkStarted()
	assert.Equal(t, provider.now, tl.StartedAt())
	assert.Equal(t, provider.now, tl.LastUpdate())

	provider.Advance(time.Hour)
	tl.MarkCompleted()
	assert.Equal(t, provider.now, tl.CompletedAt())
	assert.Equal(t, provider.now, tl.LastUpdate())
	assert.True(t, tl.CompletedAt().After(tl.StartedAt()))
}

func TestReconstructTimeline(t *testing.T) {
	started := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	completed := started.Add(time.Hour)

	tl := ReconstructTimeline(started, completed, completed)

	assert.Equal(t, started, tl.StartedAt())
	assert.Equal(t, completed, tl.CompletedAt())
	assert.Equal(t, completed, tl.LastUpdate())
}
