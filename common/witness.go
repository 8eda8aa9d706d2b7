package common

import "github.com/nspcc-dev/neo-go/pkg/interop/runtime"

var (
	// ErrCommitteeWitnessFailed appears when the method must be
	// called by the committee but was not.
	ErrCommitteeWitnessFailed = "committee witness check failed"
	// ErrWitnessFailed appears when the method must be called
	// using certain account but was not.
	ErrWitnessFailed = "witness check failed"
)

// CheckCommitteeWitness panics with ErrCommitteeWitnessFailed if the
// committee has not signed the invocation.
func CheckCommitteeWitness() {
	if !HasUpdateAccess() {
		panic(ErrCommitteeWitnessFailed)
	}
}

// CheckWitness checks witness of the passed caller.
// It panics with ErrWitnessFailed message on fail.
func CheckWitness(caller []byte) {
	if !runtime.CheckWitness(caller) {
		panic(ErrWitnessFailed)
	}
}
