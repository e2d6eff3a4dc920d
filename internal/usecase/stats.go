package usecase

import (
	"sync"
	"time"

	"voicenotes/internal/domain"
)

// statsTracker accumulates raw counters for one recording; stats are
// derived on demand, never stored.
type statsTracker struct {
	mu         sync.Mutex
	startedAt  time.Time
	chunks     int
	totalBytes int64
	samples    int64
}

func newStatsTracker(startedAt time.Time) *statsTracker {
	return &statsTracker{startedAt: startedAt}
}

func (t *statsTracker) addSamples(n int) {
	t.mu.Lock()
	t.samples += int64(n)
	t.mu.Unlock()
}

func (t *statsTracker) addChunk(byteSize int) {
	t.mu.Lock()
	t.chunks++
	t.totalBytes += int64(byteSize)
	t.mu.Unlock()
}

func (t *statsTracker) snapshot(now time.Time) domain.RecordingStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := now.Sub(t.startedAt).Seconds()
	bitrate := 0.0
	if duration > 0 {
		bitrate = float64(t.totalBytes*8) / duration
	}
	return domain.RecordingStats{
		DurationSec:          duration,
		ChunksGenerated:      t.chunks,
		TotalBytes:           t.totalBytes,
		CurrentBitrateBps:    bitrate,
		ProcessedSampleCount: t.samples,
	}
}
