// Package pipeline registers uploaded content.
//
// A run fingerprints the content, stores it in the artifact store and
// classifies it concurrently. Once all three results are in, a single
// registration is submitted to the ledger and a Receipt is returned.
// Any failure ends the run: the remaining concurrent operations are
// abandoned and nothing submitted so far is rolled back.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neofs-authenticity/artifact"
	"github.com/nspcc-dev/neofs-authenticity/classifier"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/ledger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/nspcc-dev/neofs-authenticity/pipeline"

// ArtifactStore stores content and returns its address.
type ArtifactStore interface {
	Store(ctx context.Context, name string, data []byte) (artifact.Address, error)
}

// Classifier returns the authenticity verdict of content.
type Classifier interface {
	Classify(ctx context.Context, name string, data []byte) (classifier.Verdict, error)
}

// Ledger submits registrations.
type Ledger interface {
	Register(ctx context.Context, reg ledger.Registration) (ledger.Submission, error)
}

// Journal keeps confirmed receipts.
type Journal interface {
	Record(ctx context.Context, r Receipt) error
}

// Prm groups Pipeline parameters.
type Prm struct {
	Logger *zap.Logger

	Store      ArtifactStore
	Classifier Classifier
	Ledger     Ledger

	// Journal is optional. Journal failures are logged and never fail the
	// run.
	Journal Journal

	// Gateway is an optional artifact gateway used for Receipt.ArtifactURL.
	Gateway string

	// RunTimeout limits every run. Zero means only the caller's context
	// applies.
	RunTimeout time.Duration

	// OnTransition is called on each phase change. Calls are serialized
	// within a run and must not block.
	OnTransition func(Transition)

	// TracerProvider and MeterProvider default to the global ones.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pipeline runs registrations. It is safe for concurrent use.
type Pipeline struct {
	log *zap.Logger

	store      ArtifactStore
	classifier Classifier
	ledger     Ledger
	journal    Journal

	gateway      string
	runTimeout   time.Duration
	onTransition func(Transition)
	now          func() time.Time

	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// New constructs Pipeline from Prm.
func New(prm Prm) (*Pipeline, error) {
	switch {
	case prm.Store == nil:
		return nil, errors.New("missing artifact store")
	case prm.Classifier == nil:
		return nil, errors.New("missing classifier")
	case prm.Ledger == nil:
		return nil, errors.New("missing ledger")
	}

	p := &Pipeline{
		log:          prm.Logger,
		store:        prm.Store,
		classifier:   prm.Classifier,
		ledger:       prm.Ledger,
		journal:      prm.Journal,
		gateway:      prm.Gateway,
		runTimeout:   prm.RunTimeout,
		onTransition: prm.OnTransition,
		now:          prm.Clock,
	}

	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}

	tp := prm.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	p.tracer = tp.Tracer(instrumentationName)

	mp := prm.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var err error

	p.runs, err = meter.Int64Counter("authenticity.runs",
		metric.WithDescription("Number of finished registration runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("init run counter: %w", err)
	}

	p.duration, err = meter.Float64Histogram("authenticity.run.duration",
		metric.WithDescription("Registration run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("init run duration histogram: %w", err)
	}

	return p, nil
}

// run is the state of a single Run call.
type run struct {
	p     *Pipeline
	id    uuid.UUID
	start time.Time
	log   *zap.Logger

	mu sync.Mutex
	fp *fingerprint.Fingerprint
}

// Run registers c and returns the receipt once the ledger accepted the
// registration. Failures are returned as *RunError.
func (p *Pipeline) Run(ctx context.Context, c Content) (Receipt, error) {
	r := &run{
		p:     p,
		id:    uuid.New(),
		start: p.now(),
	}
	r.log = p.log.With(zap.Stringer("run", r.id), zap.String("file", c.Name))

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", r.id.String()),
		attribute.Int("content.size", len(c.Data)),
	))
	defer span.End()

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	rec, err := r.exec(ctx, c)

	attrs := []attribute.KeyValue{attribute.Stringer("outcome", PhaseConfirmed)}
	if err != nil {
		kind := failure.KindOf(err)
		attrs = []attribute.KeyValue{
			attribute.Stringer("outcome", PhaseFailed),
			attribute.Stringer("kind", kind),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
	}

	p.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	p.duration.Record(ctx, r.elapsed().Seconds(), metric.WithAttributes(attrs...))

	return rec, err
}

func (r *run) exec(ctx context.Context, c Content) (Receipt, error) {
	r.enter(PhaseReceived, nil)

	if len(c.Data) == 0 {
		return Receipt{}, r.fail(ctx, PhaseReceived, failure.New(failure.KindInput, "pipeline.Run", fingerprint.ErrEmpty))
	}

	res, failedIn, err := r.gather(ctx, c)
	if err != nil {
		return Receipt{}, r.fail(ctx, failedIn, err)
	}

	r.enter(PhaseAllComplete, nil)

	sub, err := r.submit(ctx, res)
	if err != nil {
		return Receipt{}, r.fail(ctx, PhaseSubmitting, err)
	}

	rec := Receipt{
		Message:            SuccessMessage,
		AuthenticityScore:  res.verdict.Score,
		IsAuthentic:        res.verdict.IsAuthentic,
		ArtifactAddress:    res.addr.String(),
		ContentFingerprint: res.fp,
		TransactionID:      sub.TransactionID(),
		ValidUntilBlock:    sub.ValidUntilBlock,
		LedgerScore:        sub.Record.Score,
		Nonce:              sub.Record.Nonce,
		SubmittedAt:        sub.Record.SubmittedAt,
		Filename:           c.Name,
		RunID:              r.id,
	}
	if r.p.gateway != "" {
		rec.ArtifactURL = res.addr.URL(r.p.gateway)
	}

	r.enter(PhaseConfirmed, nil)
	r.log.Info("content registered",
		zap.Stringer("fingerprint", res.fp),
		zap.String("tx", rec.TransactionID),
		zap.Float64("score", rec.AuthenticityScore),
		zap.Bool("authentic", rec.IsAuthentic),
		zap.Duration("elapsed", r.elapsed()))

	if r.p.journal != nil {
		// the registration is already broadcast, journal it even if the
		// caller gave up meanwhile
		err = r.p.journal.Record(context.WithoutCancel(ctx), rec)
		if err != nil {
			r.log.Warn("failed to journal receipt", zap.String("tx", rec.TransactionID), zap.Error(err))
		}
	}

	return rec, nil
}

// results of the concurrent phase
type results struct {
	fp      fingerprint.Fingerprint
	addr    artifact.Address
	verdict classifier.Verdict
}

type outcome struct {
	phase   Phase
	fp      fingerprint.Fingerprint
	addr    artifact.Address
	verdict classifier.Verdict
	err     error
}

// gather runs hashing, storing and classifying concurrently and waits until
// all of them succeed or the first one fails. On failure it returns the
// phase that failed.
func (r *run) gather(ctx context.Context, c Content) (results, Phase, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so that abandoned operations never block
	ch := make(chan outcome, 3)

	go func() {
		out := outcome{phase: PhaseHashing}
		_, span := r.startPhase(ctx, PhaseHashing)
		out.fp, out.err = fingerprint.FromReader(bytes.NewReader(c.Data))
		endSpan(span, out.err)
		ch <- out
	}()

	go func() {
		out := outcome{phase: PhaseStoring}
		sctx, span := r.startPhase(ctx, PhaseStoring)
		out.addr, out.err = r.p.store.Store(sctx, c.Name, c.Data)
		endSpan(span, out.err)
		ch <- out
	}()

	go func() {
		out := outcome{phase: PhaseClassifying}
		cctx, span := r.startPhase(ctx, PhaseClassifying)
		out.verdict, out.err = r.p.classifier.Classify(cctx, c.Name, c.Data)
		endSpan(span, out.err)
		ch <- out
	}()

	var (
		res  results
		done = make(map[Phase]bool, 3)
	)

	for range 3 {
		select {
		case <-ctx.Done():
			return res, firstPending(done), failure.New(failure.KindTimeout, "pipeline.Run", ctx.Err())
		case out := <-ch:
			if out.err != nil {
				return res, out.phase, r.timeoutAware(ctx, out.err)
			}

			done[out.phase] = true

			switch out.phase {
			case PhaseHashing:
				res.fp = out.fp
				r.setFingerprint(out.fp)
				r.log.Debug("content hashed", zap.Stringer("fingerprint", out.fp))
			case PhaseStoring:
				res.addr = out.addr
				r.log.Debug("content stored", zap.Stringer("address", out.addr))
			case PhaseClassifying:
				res.verdict = out.verdict
				r.log.Debug("content classified",
					zap.Float64("score", out.verdict.Score), zap.Bool("authentic", out.verdict.IsAuthentic))
			}
		}
	}

	return res, PhaseAllComplete, nil
}

// firstPending returns the earliest concurrent phase that has not reported.
func firstPending(done map[Phase]bool) Phase {
	for _, p := range []Phase{PhaseHashing, PhaseStoring, PhaseClassifying} {
		if !done[p] {
			return p
		}
	}
	return PhaseAllComplete
}

func (r *run) submit(ctx context.Context, res results) (ledger.Submission, error) {
	ctx, span := r.startPhase(ctx, PhaseSubmitting)

	sub, err := r.p.ledger.Register(ctx, ledger.Registration{
		Fingerprint:     res.fp,
		ArtifactAddress: res.addr.String(),
		Score:           res.verdict.Score,
		IsAuthentic:     res.verdict.IsAuthentic,
	})
	if err != nil {
		err = r.timeoutAware(ctx, err)
	}

	endSpan(span, err)

	return sub, err
}

// timeoutAware reports err caused by an expired run deadline as
// failure.KindTimeout.
func (r *run) timeoutAware(ctx context.Context, err error) error {
	if failure.Is(err, failure.KindTimeout) {
		return err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return failure.New(failure.KindTimeout, "pipeline.Run", err)
	}

	return err
}

func (r *run) startPhase(ctx context.Context, ph Phase) (context.Context, trace.Span) {
	r.enter(ph, nil)
	return r.p.tracer.Start(ctx, "pipeline."+ph.String())
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, failure.KindOf(err).String())
	}
	span.End()
}

func (r *run) fail(ctx context.Context, ph Phase, err error) error {
	runErr := &RunError{
		RunID:       r.id,
		Phase:       ph,
		Fingerprint: r.fingerprint(),
		Elapsed:     r.elapsed(),
		Err:         err,
	}

	r.enter(PhaseFailed, runErr)

	fields := []zap.Field{
		zap.Stringer("phase", ph),
		zap.Stringer("kind", runErr.Kind()),
		zap.Duration("elapsed", runErr.Elapsed),
		zap.Error(err),
	}
	if runErr.Fingerprint != nil {
		fields = append(fields, zap.Stringer("fingerprint", runErr.Fingerprint))
	}

	if runErr.Kind().ClientFault() {
		r.log.Info("run rejected", fields...)
	} else {
		r.log.Warn("run failed", fields...)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("failed.phase", ph.String()))

	return runErr
}

func (r *run) enter(ph Phase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.elapsed()

	r.log.Debug("phase", zap.Stringer("phase", ph), zap.Duration("elapsed", elapsed))

	if r.p.onTransition != nil {
		r.p.onTransition(Transition{RunID: r.id, Phase: ph, Elapsed: elapsed, Err: err})
	}
}

func (r *run) setFingerprint(fp fingerprint.Fingerprint) {
	r.mu.Lock()
	r.fp = &fp
	r.mu.Unlock()
}

func (r *run) fingerprint() *fingerprint.Fingerprint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fp
}

func (r *run) elapsed() time.Duration {
	return r.p.now().Sub(r.start)
}
