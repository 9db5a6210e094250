// Package session holds per-user classification state: the held image,
// the cached prediction for it, and the label content registry.
package session

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/imaging"
	"github.com/hpungsan/snaplabel/internal/inference"
	"github.com/hpungsan/snaplabel/internal/metrics"
)

// Result is the derived state for the held image.
type Result struct {
	Prediction *inference.Prediction `json:"prediction"`
	Vocabulary []string              `json:"vocabulary"`
	Format     string                `json:"format"`
	Width      int                   `json:"width"`
	Height     int                   `json:"height"`
}

// Session is one user's state. Safe for concurrent use.
type Session struct {
	id       string
	registry content.Registry
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu     sync.Mutex
	held   []byte
	sum    [sha256.Size]byte
	result *Result
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics records pipeline metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithLogger logs pipeline failures to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns an empty session backed by registry.
func New(id string, registry content.Registry, opts ...Option) *Session {
	s := &Session{id: id, registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Registry returns the session's label content registry.
func (s *Session) Registry() content.Registry { return s.registry }

// Hold replaces the held image. Empty data is ignored.
func (s *Session) Hold(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	sum := sha256.Sum256(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sum != s.sum {
		s.result = nil
	}
	s.held = buf
	s.sum = sum
}

// Held returns a copy of the held image bytes, or nil.
func (s *Session) Held() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		return nil
	}
	out := make([]byte, len(s.held))
	copy(out, s.held)
	return out
}

// HasImage reports whether an image is held.
func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held) > 0
}

// Classify returns the prediction for the held image. The result is cached
// by content hash, so re-holding identical bytes does not re-run the model.
// Failures come back as DECODE_ERROR, MODEL_ACQUISITION_ERROR or
// INFERENCE_ERROR and are not cached.
func (s *Session) Classify(ctx context.Context, provider inference.Provider) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.held) == 0 {
		return nil, errors.NewNotFound("held image")
	}
	if s.result != nil {
		s.metrics.CacheHit()
		return s.result, nil
	}

	res, err := s.classify(ctx, provider)
	if err != nil {
		ae := errors.From(err)
		s.metrics.PipelineError(string(ae.Code))
		s.logger.Warn("classification failed",
			zap.String("session", s.id),
			zap.String("code", string(ae.Code)),
			zap.Error(err),
		)
		return nil, ae
	}
	s.result = res
	return res, nil
}

func (s *Session) classify(ctx context.Context, provider inference.Provider) (*Result, error) {
	decoded, err := imaging.Decode(s.held)
	if err != nil {
		return nil, err
	}

	predictor, err := provider.Predictor(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrModelAcquisition) {
			return nil, err
		}
		return nil, errors.NewModelAcquisition("model", err)
	}

	start := time.Now()
	pred, err := predictor.Predict(ctx, decoded.Image)
	if err != nil {
		return nil, errors.NewInference(err)
	}
	if pred == nil {
		return nil, errors.NewInference(nil)
	}
	s.metrics.ObservePrediction(pred.Label, time.Since(start))

	return &Result{
		Prediction: pred,
		Vocabulary: predictor.Vocabulary(),
		Format:     decoded.Format,
		Width:      decoded.Width(),
		Height:     decoded.Height(),
	}, nil
}

// clear drops held state. Called when the session ends.
func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = nil
	s.sum = [sha256.Size]byte{}
	s.result = nil
}
