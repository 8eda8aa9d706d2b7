// Package classifier turns the output of an authenticity model into a
// verdict.
//
// The model is opaque: it takes content bytes and returns the probability of
// each of the two mutually exclusive classes (fake, real). Client validates
// that output and normalizes it into a score and a boolean verdict. There is
// no fallback verdict: any model failure is fatal to the registration.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/neofs-authenticity/failure"
	"go.uber.org/zap"
)

// Tolerance is the allowed deviation of the probability sum from 1.
const Tolerance = 1e-3

// ErrMalformed is returned when the model output cannot be turned into a
// verdict.
var ErrMalformed = errors.New("malformed model output")

// Probabilities is a raw model output: class probabilities as fractions.
type Probabilities struct {
	Fake float64 `json:"fake"`
	Real float64 `json:"real"`
}

// Validate checks that p describes a distribution over the two classes.
func (p Probabilities) Validate() error {
	for _, v := range [2]struct {
		name string
		val  float64
	}{{"fake", p.Fake}, {"real", p.Real}} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s probability is %v", ErrMalformed, v.name, v.val)
		}
		if v.val < 0 || v.val > 1 {
			return fmt.Errorf("%w: %s probability %v out of [0, 1]", ErrMalformed, v.name, v.val)
		}
	}

	if sum := p.Fake + p.Real; math.Abs(sum-1) > Tolerance {
		return fmt.Errorf("%w: probabilities sum to %v", ErrMalformed, sum)
	}

	return nil
}

// Verdict is a normalized classification.
type Verdict struct {
	// Score is the "authentic" class probability in percent, in [0, 100].
	Score float64 `json:"score"`
	// IsAuthentic is true iff the authentic probability is not below the
	// fake one.
	IsAuthentic bool `json:"isAuthentic"`
}

// VerdictOf normalizes valid probabilities.
func VerdictOf(p Probabilities) (Verdict, error) {
	err := p.Validate()
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		Score:       math.Min(100, p.Real*100),
		IsAuthentic: p.Real >= p.Fake,
	}, nil
}

// Model is the opaque classification capability.
type Model interface {
	Predict(ctx context.Context, name string, data []byte) (Probabilities, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, name string, data []byte) (Probabilities, error)

// Predict implements Model.
func (f ModelFunc) Predict(ctx context.Context, name string, data []byte) (Probabilities, error) {
	return f(ctx, name, data)
}

// Client classifies content with a Model.
type Client struct {
	log   *zap.Logger
	model Model
}

// New returns Client over m. Nil logger disables logging.
func New(m Model, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{log: log, model: m}
}

// Classify runs the model on data. All failures are
// failure.KindClassification; malformed output additionally matches
// ErrMalformed.
func (c *Client) Classify(ctx context.Context, name string, data []byte) (Verdict, error) {
	const op = "classifier.Classify"

	p, err := c.model.Predict(ctx, name, data)
	if err != nil {
		return Verdict{}, failure.New(failure.KindClassification, op, fmt.Errorf("model prediction: %w", err))
	}

	v, err := VerdictOf(p)
	if err != nil {
		return Verdict{}, failure.New(failure.KindClassification, op, err)
	}

	c.log.Debug("content classified",
		zap.String("name", name),
		zap.Float64("fake", p.Fake),
		zap.Float64("real", p.Real),
		zap.Float64("score", v.Score),
		zap.Bool("authentic", v.IsAuthentic),
	)

	return v, nil
}
