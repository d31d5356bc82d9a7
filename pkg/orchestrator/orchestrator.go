// Package orchestrator implements the Detector Orchestrator: parallel,
// bounded-concurrency dispatch of heterogeneous detectors over text, with
// span deduplication, clinical-context filtering, confidence
// normalization, and timeout isolation. Each Orchestrator instance owns
// its own worker pool; there is no process-global pool, so independent
// callers cannot head-of-line-block one another.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/MacAttak/riskscan/pkg/contextfilter"
	"github.com/MacAttak/riskscan/pkg/detect"
	"github.com/MacAttak/riskscan/pkg/eventsink"
	"github.com/MacAttak/riskscan/pkg/normalize"
	"github.com/MacAttak/riskscan/pkg/span"
)

// ErrInputTooLarge is returned when text exceeds Config.MaxTextBytes.
var ErrInputTooLarge = errors.New("orchestrator: input exceeds MAX_TEXT_BYTES")

const defaultMaxTextBytes = 10 * 1024 * 1024 // 10 MiB

// Config controls one orchestrator instance's resource limits. Read once
// at construction and never mutated, per the environment-level
// configuration contract.
type Config struct {
	// MaxConcurrentDetections bounds in-flight detector runs for this
	// instance. Zero selects min(NumCPU, 8).
	MaxConcurrentDetections int
	// MaxTextBytes rejects larger inputs with ErrInputTooLarge. Zero
	// selects the 10 MiB default.
	MaxTextBytes int64
	// PerDetectorTimeout bounds each detector's wall-clock execution.
	// Zero selects 5 seconds.
	PerDetectorTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentDetections <= 0 {
		c.MaxConcurrentDetections = runtime.NumCPU()
		if c.MaxConcurrentDetections > 8 {
			c.MaxConcurrentDetections = 8
		}
	}
	if c.MaxTextBytes <= 0 {
		c.MaxTextBytes = defaultMaxTextBytes
	}
	if c.PerDetectorTimeout <= 0 {
		c.PerDetectorTimeout = 5 * time.Second
	}
	return c
}

// KnownEntity is a previously-detected literal (e.g. from cloud DLP
// findings) the caller supplies for the known-entity pre-pass.
type KnownEntity struct {
	Value      string
	EntityType string
}

// Request is one detect() call's input.
type Request struct {
	Text           string
	Deadline       time.Time
	KnownEntities  []KnownEntity
	StructuredData bool
	ScanID         string
}

// Result is one Detect call's output, including the degraded-path
// flags callers use to distinguish a clean empty result from one with
// failed or timed-out detectors.
type Result struct {
	Spans                     []span.Span
	Degraded                  bool
	StructuredExtractorFailed bool
	AllDetectorsFailed        bool
	Cancelled                 bool
}

// Orchestrator composes all enabled detectors and runs the full pipeline.
// An Orchestrator is not safe to share configuration mutation across
// instances, but Detect itself is safe for concurrent callers — each call
// owns its own bounded dispatch within the instance's worker-pool limit.
type Orchestrator struct {
	cfg Config

	detectors          []detect.Detector
	structuredDetector *detect.StructuredDetector

	clinicalFilter *contextfilter.ClinicalContextFilter
	trackingFilter *contextfilter.TrackingNumberFilter
	enhancer       *contextfilter.ContextEnhancer

	sink eventsink.Sink
	sem  *semaphore.Weighted
}

// New builds an Orchestrator over the given detector set. detectors
// should include every enabled checksum/pattern/credential/ML detector;
// the structured detector is handled separately since it runs as its own
// pipeline stage ahead of the concurrent fan-out. A nil sink falls back
// to eventsink.NoopSink.
func New(cfg Config, detectors []detect.Detector, structuredDetector *detect.StructuredDetector, sink eventsink.Sink) *Orchestrator {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = eventsink.NoopSink{}
	}
	return &Orchestrator{
		cfg:                cfg,
		detectors:          detectors,
		structuredDetector: structuredDetector,
		clinicalFilter:     contextfilter.NewClinicalContextFilter(),
		trackingFilter:     contextfilter.NewTrackingNumberFilter(),
		enhancer:           contextfilter.NewContextEnhancer(),
		sink:               sink,
		sem:                semaphore.NewWeighted(int64(cfg.MaxConcurrentDetections)),
	}
}

// Detect runs the full nine-stage pipeline against req and returns the
// resulting spans, or ErrInputTooLarge if the input exceeds the
// configured limit.
func (o *Orchestrator) Detect(ctx context.Context, req Request) (Result, error) {
	if int64(len(req.Text)) > o.cfg.MaxTextBytes {
		return Result{}, ErrInputTooLarge
	}

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	o.sink.Publish(eventsink.Event{
		Kind:   eventsink.KindScanStart,
		ScanID: req.ScanID,
		Fields: map[string]interface{}{"bytes": len(req.Text)},
	})

	result := Result{}

	// Stage 1: known-entity pre-pass. Runs against the original text, so
	// its spans are already in original coordinates and must not pass
	// through the normalized-offset translation below.
	knownSpans := knownEntityPrePass(req.Text, req.KnownEntities)

	// Stage 2: text normalization.
	normalized := normalize.Normalize(req.Text)

	// Stages 3-4 run against normalized text; their spans need
	// translation back to original coordinates.
	var normalizedSpans []span.Span

	// Stage 3: structured extraction.
	if req.StructuredData && o.structuredDetector != nil {
		structuredSpans, err := o.runWithRecover(o.structuredDetector, normalized.Text)
		if err != nil {
			result.Degraded = true
			result.StructuredExtractorFailed = true
			log.Warn().Err(err).Msg("orchestrator: structured extractor failed, continuing with original text")
		} else {
			normalizedSpans = append(normalizedSpans, structuredSpans...)
		}
	}

	// Stage 4: detector fan-out, bounded concurrency, per-detector
	// timeout via sacrificial-worker watchdog.
	fanOutSpans, allFailed, degraded, cancelled := o.fanOut(ctx, normalized.Text, req.ScanID)
	normalizedSpans = append(normalizedSpans, fanOutSpans...)
	if degraded {
		result.Degraded = true
	}
	if cancelled {
		result.Cancelled = true
	}
	if allFailed && len(o.detectors) > 0 {
		result.AllDetectorsFailed = true
		result.Degraded = true
	}

	// Translate normalized-text offsets back to original coordinates.
	for i := range normalizedSpans {
		normalizedSpans[i].Start = normalized.ToOriginal(normalizedSpans[i].Start)
		normalizedSpans[i].End = normalized.ToOriginal(normalizedSpans[i].End)
	}

	spans := append(knownSpans, normalizedSpans...)

	// Stage 5: span merger.
	spans = span.Merge(spans)

	// Stage 6: clinical-context filter.
	spans = o.clinicalFilter.Apply(req.Text, spans)

	// Stage 7: tracking-number filter.
	spans = o.trackingFilter.Apply(req.Text, spans)

	// Stage 8: confidence normalization.
	spans = normalizeConfidence(spans)

	// Stage 9: context enhancement.
	spans = o.enhancer.Apply(req.Text, spans)

	span.Sort(spans)
	result.Spans = spans

	o.sink.Publish(eventsink.Event{
		Kind:   eventsink.KindScanComplete,
		ScanID: req.ScanID,
		Fields: map[string]interface{}{"spans": len(spans), "degraded": result.Degraded},
	})

	return result, nil
}

// knownEntityPrePass locates caller-supplied literals in text and tags
// them tier 1, ahead of any other detector.
func knownEntityPrePass(text string, known []KnownEntity) []span.Span {
	var spans []span.Span
	for _, k := range known {
		if k.Value == "" {
			continue
		}
		start := 0
		for {
			idx := strings.Index(text[start:], k.Value)
			if idx < 0 {
				break
			}
			absStart := start + idx
			spans = append(spans, span.Span{
				EntityType:     k.EntityType,
				Start:          absStart,
				End:            absStart + len(k.Value),
				Confidence:     0.99,
				DetectorTier:   span.TierChecksum,
				SourceDetector: "known_entity",
			})
			start = absStart + len(k.Value)
		}
	}
	return spans
}

// fanOut dispatches the non-structured detector set with bounded
// concurrency, isolating crashes and timeouts per detector.
func (o *Orchestrator) fanOut(ctx context.Context, text string, scanID string) (spans []span.Span, allFailed bool, degraded bool, cancelled bool) {
	if len(o.detectors) == 0 {
		return nil, false, false, false
	}

	outcomes := make(chan detectOutcome, len(o.detectors))

	for _, d := range o.detectors {
		d := d
		if err := o.sem.Acquire(ctx, 1); err != nil {
			outcomes <- detectOutcome{failed: true}
			continue
		}
		go func() {
			defer o.sem.Release(1)
			res := o.runDetectorWithTimeout(ctx, d, text, scanID)
			outcomes <- res
		}()
	}

	failedCount := 0
	for i := 0; i < len(o.detectors); i++ {
		res := <-outcomes
		if res.failed || res.timeout {
			failedCount++
			degraded = true
			continue
		}
		spans = append(spans, res.spans...)
	}

	if ctx.Err() != nil {
		cancelled = true
	}
	allFailed = failedCount == len(o.detectors)
	return spans, allFailed, degraded, cancelled
}

// detectOutcome is one detector's result from runDetectorWithTimeout:
// either spans, a failure (error or panic), or a timeout. failed and
// timeout are both treated as an isolated, degraded detector by fanOut,
// which handles the two the same way; runDetectorWithTimeout logs and
// publishes each case separately before returning.
type detectOutcome struct {
	spans   []span.Span
	failed  bool
	timeout bool
}

// runDetectorWithTimeout runs a single detector on a sacrificial
// goroutine with a watchdog: the regex engines this module depends on
// (stdlib regexp, gitleaks' regex rules) do not support mid-evaluation
// cancellation, so an exceeding detector's goroutine is abandoned rather
// than joined — its partial results are discarded and it is marked
// degraded, never joined into the result.
func (o *Orchestrator) runDetectorWithTimeout(ctx context.Context, d detect.Detector, text string, scanID string) detectOutcome {
	type result struct {
		spans []span.Span
		err   error
	}
	resultCh := make(chan result, 1)

	detectCtx, cancel := context.WithTimeout(ctx, o.cfg.PerDetectorTimeout)
	defer cancel()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: fmt.Errorf("detector %s panicked: %v", d.Name(), r)}
			}
		}()
		spans, err := d.Detect(detectCtx, text)
		resultCh <- result{spans: spans, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			log.Warn().Err(res.err).Str("detector", d.Name()).Msg("orchestrator: detector failed, isolating")
			o.sink.Publish(eventsink.Event{
				Kind:     eventsink.KindDetectorFailed,
				ScanID:   scanID,
				Detector: d.Name(),
				Fields:   map[string]interface{}{"error": res.err.Error()},
			})
			return detectOutcome{failed: true}
		}
		o.sink.Publish(eventsink.Event{
			Kind:     eventsink.KindDetectorComplete,
			ScanID:   scanID,
			Detector: d.Name(),
			Fields:   map[string]interface{}{"spans": len(res.spans)},
		})
		return detectOutcome{spans: res.spans}
	case <-detectCtx.Done():
		log.Warn().Str("detector", d.Name()).Msg("orchestrator: detector timed out, discarding partial results")
		o.sink.Publish(eventsink.Event{
			Kind:     eventsink.KindDetectorFailed,
			ScanID:   scanID,
			Detector: d.Name(),
			Fields:   map[string]interface{}{"reason": "timeout"},
		})
		return detectOutcome{timeout: true}
	}
}

// runWithRecover runs a detector (the structured extractor) synchronously
// with panic isolation, used for the stage-3 structured extraction path
// which is not part of the bounded fan-out.
func (o *Orchestrator) runWithRecover(d detect.Detector, text string) (spans []span.Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("structured extractor panicked: %v", r)
		}
	}()
	return d.Detect(context.Background(), text)
}

// normalizeConfidence clamps every span's confidence into [0, 0.99]. The
// same bounds apply to every entity type; values inside the range are left
// unchanged and no per-type rescaling is done.
func normalizeConfidence(spans []span.Span) []span.Span {
	const confidenceCap = 0.99
	out := make([]span.Span, len(spans))
	for i, s := range spans {
		if s.Confidence > confidenceCap {
			s.Confidence = confidenceCap
		}
		if s.Confidence < 0 {
			s.Confidence = 0
		}
		out[i] = s
	}
	return out
}
