package satellite

import "time"

// Snapshot is the single published view of the tracking state.
// Nil Position or Place means the value is absent. Published snapshots
// are shared between subscribers and must be treated as read-only.
type Snapshot struct {
	Position *PositionSample `json:"position"`
	Place    *PlaceInfo      `json:"place"`
	Tracking bool            `json:"tracking"`

	// Generation is the tracking session that produced Position and Place
	Generation uint64 `json:"generation"`
	// Cycle numbers refresh cycles across the lifetime of the controller
	Cycle       uint64    `json:"cycle"`
	PublishedAt time.Time `json:"published_at"`

	// Stale is set when the last successful position is being republished
	// after repeated fetch failures
	Stale               bool `json:"stale"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

// HasPosition reports whether a position has ever been published
func (s Snapshot) HasPosition() bool {
	return s.Position != nil
}

// HasPlace reports whether a place accompanies the position
func (s Snapshot) HasPlace() bool {
	return s.Place != nil
}
