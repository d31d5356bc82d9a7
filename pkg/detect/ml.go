package detect

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/daulet/tokenizers"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/MacAttak/riskscan/pkg/span"
)

// Tagger is the narrow interface an ONNX-backed (or any other) token
// tagging model satisfies. It maps token byte-offsets in text to entity
// types with a confidence.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]span.Span, error)
	Close() error
}

// MLConfig configures the lazily-initialized ONNX model backing the
// optional ML tagger.
type MLConfig struct {
	ModelPath     string
	TokenizerPath string
	MaxTokens     int
	// Labels is the model's output vocabulary, indexed by the argmax
	// position of each token's logits row. Labels[0] must be the
	// non-entity label.
	Labels []string
	// MinConfidence discards a span (a run of adjacent same-label tokens)
	// whose average softmax-normalized score falls below this value rather
	// than emitting a low-confidence span.
	MinConfidence float64
}

func (c MLConfig) withDefaults() MLConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if len(c.Labels) == 0 {
		c.Labels = []string{"O"}
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	return c
}

// MLDetector is the tier-3 optional detector: a tagging model mapping
// token offsets to entity types. It is lazy-initialized on first Detect
// call and must be optional without impacting the rest of the pipeline —
// if the model cannot be loaded (missing files, runtime unavailable),
// Detect degrades to zero spans rather than failing the orchestrator run.
type MLDetector struct {
	cfg MLConfig

	initOnce sync.Once
	initErr  error
	tagger   Tagger
}

// NewMLDetector builds an MLDetector that defers model loading until the
// first Detect call.
func NewMLDetector(cfg MLConfig) *MLDetector {
	return &MLDetector{cfg: cfg.withDefaults()}
}

func (d *MLDetector) Name() string    { return "ml" }
func (d *MLDetector) Tier() span.Tier { return span.TierML }

func (d *MLDetector) Detect(ctx context.Context, text string) ([]span.Span, error) {
	if d.cfg.ModelPath == "" || d.cfg.TokenizerPath == "" {
		// No model configured: this detector is optional by contract, so
		// absence of configuration is a no-op, not an error.
		return nil, nil
	}

	d.initOnce.Do(func() {
		d.tagger, d.initErr = newONNXTagger(d.cfg)
	})
	if d.initErr != nil {
		log.Warn().Err(d.initErr).Msg("ml detector: model unavailable, degrading to zero spans")
		return nil, nil
	}

	spans, err := d.tagger.Tag(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("ml detector: inference failed, degrading to zero spans")
		return nil, nil
	}
	return collapseSelfOverlaps(spans), nil
}

// Close releases the underlying model, if one was loaded.
func (d *MLDetector) Close() error {
	if d.tagger != nil {
		return d.tagger.Close()
	}
	return nil
}

// onnxTagger runs token classification with a HuggingFace tokenizer
// feeding a fixed-shape ONNX session: tensors are preallocated once at
// session creation and their backing arrays are reused (with
// zero-padding) across Tag calls rather than allocated per call.
type onnxTagger struct {
	cfg       MLConfig
	tokenizer *tokenizers.Tokenizer
	session   *ort.AdvancedSession
	inputIDs  *ort.Tensor[int64]
	attnMask  *ort.Tensor[int64]
	logits    *ort.Tensor[float32]
}

func newONNXTagger(cfg MLConfig) (Tagger, error) {
	tk, err := tokenizers.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("ml detector: load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			tk.Close()
			return nil, fmt.Errorf("ml detector: initialize onnxruntime: %w", err)
		}
	}

	shape := ort.NewShape(1, int64(cfg.MaxTokens))
	inputIDs, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("ml detector: allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		inputIDs.Destroy()
		tk.Close()
		return nil, fmt.Errorf("ml detector: allocate attention_mask tensor: %w", err)
	}
	logitsShape := ort.NewShape(1, int64(cfg.MaxTokens), int64(len(cfg.Labels)))
	logits, err := ort.NewEmptyTensor[float32](logitsShape)
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		tk.Close()
		return nil, fmt.Errorf("ml detector: allocate logits tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"logits"},
		[]ort.ArbitraryTensor{inputIDs, attnMask}, []ort.ArbitraryTensor{logits}, nil)
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		logits.Destroy()
		tk.Close()
		return nil, fmt.Errorf("ml detector: load model %s: %w", cfg.ModelPath, err)
	}

	return &onnxTagger{
		cfg:       cfg,
		tokenizer: tk,
		session:   session,
		inputIDs:  inputIDs,
		attnMask:  attnMask,
		logits:    logits,
	}, nil
}

// Tag tokenizes text, runs the bound session, and decodes each token's
// argmax label back into a span over text's original byte offsets.
// Adjacent tokens sharing the same label are merged into one span so a
// multi-token entity ("4111 1111 1111 1111") produces a single result
// rather than one span per token.
func (t *onnxTagger) Tag(ctx context.Context, text string) ([]span.Span, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	encoding := t.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAllAttributes())

	idData := t.inputIDs.GetData()
	maskData := t.attnMask.GetData()
	n := len(encoding.IDs)
	if n > t.cfg.MaxTokens {
		n = t.cfg.MaxTokens
	}
	for i := 0; i < len(idData); i++ {
		if i < n {
			idData[i] = int64(encoding.IDs[i])
			maskData[i] = 1
		} else {
			idData[i] = 0
			maskData[i] = 0
		}
	}

	if err := t.session.Run(); err != nil {
		return nil, fmt.Errorf("ml detector: run inference: %w", err)
	}

	numLabels := len(t.cfg.Labels)
	logitsData := t.logits.GetData()

	var spans []span.Span
	var runStart, runEnd = -1, -1
	var runLabel string
	var runConfSum float64
	var runConfN int

	flush := func() {
		if runLabel == "" || runStart < 0 {
			return
		}
		conf := runConfSum / float64(runConfN)
		if conf >= t.cfg.MinConfidence {
			spans = append(spans, span.Span{
				EntityType:     runLabel,
				Start:          runStart,
				End:            runEnd,
				Confidence:     conf,
				DetectorTier:   span.TierML,
				SourceDetector: "ml",
			})
		}
		runStart, runEnd, runLabel, runConfSum, runConfN = -1, -1, "", 0, 0
	}

	for i := 0; i < n; i++ {
		off := encoding.Offsets[i]
		tokStart, tokEnd := int(off[0]), int(off[1])
		if tokEnd <= tokStart {
			continue // special tokens carry a zero-width offset
		}

		label, conf := argmaxLabel(logitsData[i*numLabels:(i+1)*numLabels], t.cfg.Labels)
		if label == t.cfg.Labels[0] {
			flush()
			continue
		}
		if label != runLabel {
			flush()
			runStart, runLabel = tokStart, label
		}
		runEnd = tokEnd
		runConfSum += conf
		runConfN++
	}
	flush()

	return spans, nil
}

func (t *onnxTagger) Close() error {
	var firstErr error
	if t.session != nil {
		if err := t.session.Destroy(); err != nil {
			firstErr = err
		}
	}
	if t.inputIDs != nil {
		t.inputIDs.Destroy()
	}
	if t.attnMask != nil {
		t.attnMask.Destroy()
	}
	if t.logits != nil {
		t.logits.Destroy()
	}
	if t.tokenizer != nil {
		t.tokenizer.Close()
	}
	if firstErr != nil {
		return fmt.Errorf("ml detector: close: %w", firstErr)
	}
	return nil
}

// argmaxLabel picks the highest-scoring label for one token's logits row
// and converts its score to a softmax-normalized confidence.
func argmaxLabel(row []float32, labels []string) (string, float64) {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}

	maxVal := float64(row[best])
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxVal)
	}
	conf := 1.0
	if sum > 0 {
		conf = 1.0 / sum // exp(maxVal-maxVal) == 1
	}
	return labels[best], conf
}
