package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/config"
	"github.com/hpungsan/snaplabel/internal/errors"
)

// OpenFunc builds a predictor once its artifacts are on disk.
type OpenFunc func(ctx context.Context) (Predictor, error)

// Loader is a Provider that acquires the predictor once per process.
// A failed acquisition is not remembered; the next caller tries again.
type Loader struct {
	mu        sync.Mutex
	predictor Predictor
	open      OpenFunc
	logger    *zap.Logger
}

// NewLoader returns a Loader that downloads the configured model artifacts
// when missing and opens them with ONNX Runtime.
func NewLoader(cfg *config.Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSeconds) * time.Second}
	l := &Loader{logger: logger}
	l.open = func(ctx context.Context) (Predictor, error) {
		return acquire(ctx, cfg, client, DefaultDownloadURL, logger)
	}
	return l
}

// NewLoaderFunc returns a Loader that uses open to build the predictor.
func NewLoaderFunc(open OpenFunc, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{open: open, logger: logger}
}

// Predictor returns the cached predictor, acquiring it on first use.
// Failures are reported as MODEL_ACQUISITION_ERROR.
func (l *Loader) Predictor(ctx context.Context) (Predictor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.predictor != nil {
		return l.predictor, nil
	}

	p, err := l.open(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrModelAcquisition) {
			return nil, err
		}
		return nil, errors.NewModelAcquisition("model", err)
	}
	l.predictor = p
	return p, nil
}

// Loaded reports whether the predictor has been acquired.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.predictor != nil
}

// Close releases the predictor if it holds resources.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.predictor.(io.Closer); ok {
		l.predictor = nil
		return c.Close()
	}
	l.predictor = nil
	return nil
}

// acquire fetches missing artifacts and opens the ONNX model.
func acquire(ctx context.Context, cfg *config.Config, client *http.Client, urlTemplate string, logger *zap.Logger) (Predictor, error) {
	if strings.TrimSpace(cfg.MetadataID) == "" {
		if _, err := os.Stat(cfg.MetadataPath); err != nil {
			return nil, errors.NewModelAcquisition(cfg.MetadataPath,
				fmt.Errorf("model metadata not found; place the ONNX export's metadata JSON at metadata_path or set metadata_id"))
		}
	}

	downloaded, err := Fetch(ctx, client, urlTemplate, cfg.MetadataID, cfg.MetadataPath)
	if err != nil {
		return nil, errors.NewModelAcquisition(cfg.MetadataPath, err)
	}
	if downloaded {
		logger.Info("downloaded model metadata", zap.String("path", cfg.MetadataPath))
	}

	downloaded, err = Fetch(ctx, client, urlTemplate, cfg.ModelID, cfg.ModelPath)
	if err != nil {
		return nil, errors.NewModelAcquisition(cfg.ModelPath, err)
	}
	if downloaded {
		logger.Info("downloaded model", zap.String("path", cfg.ModelPath), zap.String("model_id", cfg.ModelID))
	}

	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, errors.NewModelAcquisition(cfg.MetadataPath, err)
	}

	p, err := NewONNXPredictor(cfg.ModelPath, meta, cfg.RuntimeLibrary)
	if err != nil {
		return nil, errors.NewModelAcquisition(cfg.ModelPath, err)
	}

	logger.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.Int("classes", len(meta.Classes)),
		zap.Strings("vocabulary", meta.Classes),
	)
	return p, nil
}

// Static is a Provider that always returns p.
type Static struct {
	P Predictor
}

// Predictor returns the wrapped predictor.
func (s Static) Predictor(context.Context) (Predictor, error) {
	return s.P, nil
}
