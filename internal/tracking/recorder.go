package tracking

import "time"

// Outcome of one refresh cycle
type Outcome string

const (
	// OutcomePublished: position and place published
	OutcomePublished Outcome = "published"
	// OutcomeDegraded: position published with an unknown place
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFetchFailed: position fetch failed, previous snapshot kept
	OutcomeFetchFailed Outcome = "fetch_failed"
	// OutcomeDiscarded: result arrived for a superseded generation or cycle
	OutcomeDiscarded Outcome = "discarded"
)

// Recorder observes the controller. Calls are made from the controller
// loop and must not block or call back into the controller.
type Recorder interface {
	ObserveCycle(outcome Outcome, elapsed time.Duration)
	ObserveState(state State, generation uint64)
	ObserveFailures(consecutive int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(Outcome, time.Duration) {}
func (nopRecorder) ObserveState(State, uint64)          {}
func (nopRecorder) ObserveFailures(int)                 {}
