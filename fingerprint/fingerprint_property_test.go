//go:build property

package fingerprint_test

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
)

// Property: equal bytes give equal fingerprints, whatever reader delivers them.
func TestFingerprintDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("identical bytes yield identical fingerprints", prop.ForAll(
		func(data []byte) bool {
			if len(data) == 0 {
				return true
			}

			cp := append([]byte(nil), data...)

			fromReader, err := fingerprint.FromReader(bytes.NewReader(cp))
			if err != nil {
				return false
			}

			return fingerprint.Of(data) == fromReader
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// Property: distinct generated inputs never collide.
func TestFingerprintNoCollisions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("distinct bytes yield distinct fingerprints", prop.ForAll(
		func(a, b []byte) bool {
			if bytes.Equal(a, b) {
				return fingerprint.Of(a) == fingerprint.Of(b)
			}
			return fingerprint.Of(a) != fingerprint.Of(b)
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// Property: hex form round-trips.
func TestFingerprintParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("Parse(String(f)) == f", prop.ForAll(
		func(data []byte) bool {
			f := fingerprint.Of(data)
			got, err := fingerprint.Parse(f.String())
			return err == nil && got == f
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
