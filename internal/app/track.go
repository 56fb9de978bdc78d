package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/pkg/logger"
)

// SnapshotSource is the controller's subscription surface
type SnapshotSource interface {
	Subscribe(fn func(satellite.Snapshot)) (unsubscribe func())
}

// TrackRecorder appends every new position to a TrackRepository. Stale
// republishes and repeated samples are skipped.
type TrackRecorder struct {
	source  SnapshotSource
	repo    satellite.TrackRepository
	logger  *logger.Logger
	samples chan satellite.PositionSample
}

// NewTrackRecorder creates a recorder; call Run to start it
func NewTrackRecorder(source SnapshotSource, repo satellite.TrackRepository, log *logger.Logger) *TrackRecorder {
	return &TrackRecorder{
		source:  source,
		repo:    repo,
		logger:  log.WithComponent("track-recorder"),
		samples: make(chan satellite.PositionSample, 16),
	}
}

// Run records samples until ctx is done
func (r *TrackRecorder) Run(ctx context.Context) error {
	var last satellite.PositionSample
	unsubscribe := r.source.Subscribe(func(s satellite.Snapshot) {
		// runs on the controller goroutine: never block
		if !s.HasPosition() || s.Stale || s.Position.Timestamp.Equal(last.Timestamp) {
			return
		}
		last = *s.Position
		select {
		case r.samples <- last:
		default:
			r.logger.Warn("Track queue full, dropping sample", zap.Stringer("sample", last))
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sample := <-r.samples:
			if err := r.repo.Append(ctx, sample); err != nil {
				r.logger.Warn("Failed to record track sample", zap.Error(err))
			}
		}
	}
}
