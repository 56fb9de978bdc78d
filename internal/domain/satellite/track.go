package satellite

import (
	"context"
	"sync"
)

// TrackRepository keeps the most recent positions, the ground track drawn
// behind the map marker
type TrackRepository interface {
	// Append records a sample, evicting the oldest beyond the capacity
	Append(ctx context.Context, sample PositionSample) error

	// Recent returns up to n samples, oldest first. n <= 0 returns all.
	Recent(ctx context.Context, n int) ([]PositionSample, error)

	// Clear drops the recorded track
	Clear(ctx context.Context) error
}

// MemoryTrackRepository is a bounded in-process TrackRepository
type MemoryTrackRepository struct {
	mu       sync.Mutex
	capacity int
	samples  []PositionSample
}

// NewMemoryTrackRepository keeps at most capacity samples
func NewMemoryTrackRepository(capacity int) *MemoryTrackRepository {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryTrackRepository{capacity: capacity}
}

func (m *MemoryTrackRepository) Append(_ context.Context, sample PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, sample)
	if over := len(m.samples) - m.capacity; over > 0 {
		m.samples = append(m.samples[:0:0], m.samples[over:]...)
	}
	return nil
}

func (m *MemoryTrackRepository) Recent(_ context.Context, n int) ([]PositionSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if n > 0 && n < len(m.samples) {
		start = len(m.samples) - n
	}
	out := make([]PositionSample, len(m.samples)-start)
	copy(out, m.samples[start:])
	return out, nil
}

func (m *MemoryTrackRepository) Clear(_ context.Context) error {
	m.mu.Lock()
	m.samples = nil
	m.mu.Unlock()
	return nil
}
