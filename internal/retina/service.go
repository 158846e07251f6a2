package retina

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"go.uber.org/zap"

	"retinascan/internal/vision"
)

// Model is a loaded binary classifier. Implementations must be safe for
// concurrent use.
type Model interface {
	Infer(t *vision.Tensor) ([]float32, error)
}

// ProbabilityCache stores P(DR) keyed by image digest.
type ProbabilityCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, p float64) error
}

// Prediction is the success body of POST /predict/retina.
type Prediction struct {
	Success         bool           `json:"success"`
	Prediction      Label          `json:"prediction"`
	Confidence      string         `json:"confidence"`
	AllPredictions  ClassBreakdown `json:"all_predictions"`
	Recommendations []string       `json:"recommendations"`
}

// ClassBreakdown holds both class probabilities as percentage strings.
type ClassBreakdown struct {
	NoDR       string `json:"No DR"`
	DRDetected string `json:"DR Detected"`
}

// NewPrediction formats a decision into the response record.
func NewPrediction(d Decision) *Prediction {
	return &Prediction{
		Success:    true,
		Prediction: d.Label,
		Confidence: FormatPercent(d.Confidence),
		AllPredictions: ClassBreakdown{
			NoDR:       FormatPercent(1 - d.Probability),
			DRDetected: FormatPercent(d.Probability),
		},
		Recommendations: d.Label.Recommendations(),
	}
}

// Service runs the decode, preprocess, infer and decide pipeline.
type Service struct {
	model     Model
	cache     ProbabilityCache
	log       *zap.Logger
	maxPixels int64
}

type Option func(*Service)

// WithMaxImagePixels caps the decoded image size; n <= 0 disables the cap.
func WithMaxImagePixels(n int64) Option {
	return func(s *Service) {
		s.maxPixels = n
	}
}

// NewService wires the classifier pipeline. cache may be nil.
func NewService(model Model, cache ProbabilityCache, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		model:     model,
		cache:     cache,
		log:       log,
		maxPixels: vision.DefaultMaxImagePixels,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict decodes a base64 (optionally data-URI) image, classifies it and
// builds the response record.
func (s *Service) Predict(ctx context.Context, payload string) (*Prediction, error) {
	s.log.Debug("received prediction request", zap.Int("payload_len", len(payload)))

	data, err := vision.DecodePayload(payload)
	if err != nil {
		return nil, err
	}

	key := digest(data)
	p, hit := s.lookup(ctx, key)
	if !hit {
		p, err = s.infer(data)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, p)
	}

	d := Decide(p)
	s.log.Debug("prediction",
		zap.Stringer("label", d.Label),
		zap.Float64("probability", p),
		zap.Bool("cached", hit),
	)
	return NewPrediction(d), nil
}

func (s *Service) infer(data []byte) (float64, error) {
	img, format, err := vision.DecodeImage(data, s.maxPixels)
	if err != nil {
		return 0, err
	}
	b := img.Bounds()
	s.log.Debug("decoded image",
		zap.String("format", format),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
	)

	tensor := vision.Preprocess(img)
	s.log.Debug("preprocessed image", zap.Int64s("shape", tensor.Shape[:]))

	return s.forward(tensor)
}

// Classify runs the model on an already preprocessed tensor.
func (s *Service) Classify(t *vision.Tensor) (*Prediction, error) {
	p, err := s.forward(t)
	if err != nil {
		return nil, err
	}
	return NewPrediction(Decide(p)), nil
}

func (s *Service) forward(t *vision.Tensor) (float64, error) {
	out, err := s.model.Infer(t)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrModelInference, err)
	}
	return probability(out)
}

// probability reads P(DR) from a sigmoid (1 value) or two-class softmax
// ([P(No DR), P(DR)]) output.
func probability(out []float32) (float64, error) {
	var p float64
	switch len(out) {
	case 1:
		p = float64(out[0])
	case 2:
		p = float64(out[1])
	default:
		return 0, fmt.Errorf("%w: unexpected output cardinality %d", ErrModelInference, len(out))
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: probability %v outside [0, 1]", ErrModelInference, p)
	}
	return p, nil
}

func (s *Service) lookup(ctx context.Context, key string) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}
	p, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("probability cache get failed", zap.Error(err))
		return 0, false
	}
	return p, ok
}

func (s *Service) store(ctx context.Context, key string, p float64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, p); err != nil {
		s.log.Warn("probability cache set failed", zap.Error(err))
	}
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
