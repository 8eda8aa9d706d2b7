package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
)

// Phase is a state of a registration run.
type Phase uint8

// Run phases in the order they are entered. Hashing, storing and
// classifying run concurrently.
const (
	PhaseReceived Phase = iota
	PhaseHashing
	PhaseStoring
	PhaseClassifying
	PhaseAllComplete
	PhaseSubmitting
	PhaseConfirmed
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseReceived:    "received",
	PhaseHashing:     "hashing",
	PhaseStoring:     "storing",
	PhaseClassifying: "classifying",
	PhaseAllComplete: "all_complete",
	PhaseSubmitting:  "submitting",
	PhaseConfirmed:   "confirmed",
	PhaseFailed:      "failed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseConfirmed || p == PhaseFailed
}

// Transition is reported each time a run enters a phase.
type Transition struct {
	RunID uuid.UUID
	Phase Phase
	// Elapsed is the time since the run was received.
	Elapsed time.Duration
	// Err is set for PhaseFailed.
	Err error
}

// RunError is the failure of a run. It keeps the failure kind of the
// underlying component error.
type RunError struct {
	RunID uuid.UUID
	// Phase is the phase in which the run failed.
	Phase Phase
	// Fingerprint is nil if the content was not hashed before the failure.
	Fingerprint *fingerprint.Fingerprint
	Elapsed     time.Duration
	Err         error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s after %s: %v", e.RunID, e.Phase, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Kind returns the failure kind of the underlying error.
func (e *RunError) Kind() failure.Kind {
	return failure.KindOf(e.Err)
}
