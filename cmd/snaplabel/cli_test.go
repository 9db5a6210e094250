package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/snaplabel/internal/config"
	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/inference"
)

type fakePredictor struct{}

func (fakePredictor) Vocabulary() []string { return []string{"bird", "cat", "dog"} }

func (fakePredictor) Predict(context.Context, image.Image) (*inference.Prediction, error) {
	return &inference.Prediction{Label: "dog", Index: 2, Probs: []float64{0.1, 0.2, 0.7}}, nil
}

type failingProvider struct{}

func (failingProvider) Predictor(context.Context) (inference.Predictor, error) {
	return nil, errors.NewModelAcquisition("model.onnx", fmt.Errorf("offline"))
}

// runApp runs the CLI with args and returns what it printed to stdout.
func runApp(t *testing.T, cfg *config.Config, provider inference.Provider, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	app := newCLIApp(cfg, provider)
	runErr := app.Run(append([]string{"snaplabel"}, args...))

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	return buf.String(), runErr
}

// writePNG writes a small PNG into a temp dir and returns its path.
func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "snap.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLIClassify(t *testing.T) {
	path := writePNG(t)

	out, err := runApp(t, nil, inference.Static{P: fakePredictor{}}, "classify", path)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	var result classifyOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("failed to parse output: %v\n%s", err, out)
	}
	if result.Label != "dog" {
		t.Errorf("Label = %q, want dog", result.Label)
	}
	if result.Format != "png" || result.Width != 3 || result.Height != 2 {
		t.Errorf("image info = %s %dx%d", result.Format, result.Width, result.Height)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(result.Rows))
	}
	want := []string{"dog", "cat", "bird"}
	for i, row := range result.Rows {
		if row.Label != want[i] {
			t.Errorf("rows[%d] = %q, want %q", i, row.Label, want[i])
		}
	}
	if result.Rows[0].Percent != "70.00" || !result.Rows[0].Highlight || result.Rows[1].Highlight {
		t.Errorf("top row = %+v", result.Rows[0])
	}

	out, err = runApp(t, nil, inference.Static{P: fakePredictor{}}, "classify", "--top=1", path)
	if err != nil {
		t.Fatalf("classify --top failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 || result.Rows[0].Label != "dog" {
		t.Errorf("--top=1 rows = %+v", result.Rows)
	}
}

func TestCLIClassify_Errors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.jpg")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		provider inference.Provider
		args     []string
		wantCode string
	}{
		{"no file", inference.Static{P: fakePredictor{}}, []string{"classify"}, "INVALID_REQUEST"},
		{"bad extension", inference.Static{P: fakePredictor{}}, []string{"classify", "snap.gif"}, "INVALID_REQUEST"},
		{"missing file", inference.Static{P: fakePredictor{}}, []string{"classify", filepath.Join(t.TempDir(), "nope.png")}, "NOT_FOUND"},
		{"undecodable", inference.Static{P: fakePredictor{}}, []string{"classify", garbage}, "DECODE_ERROR"},
		{"model unavailable", failingProvider{}, []string{"classify", writePNG(t)}, "MODEL_ACQUISITION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, nil, tt.provider, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "["+tt.wantCode+"]") {
				t.Errorf("error = %q, want code %s", err.Error(), tt.wantCode)
			}
		})
	}
}

func TestCLIVocabulary(t *testing.T) {
	out, err := runApp(t, nil, inference.Static{P: fakePredictor{}}, "vocabulary")
	if err != nil {
		t.Fatalf("vocabulary failed: %v", err)
	}
	var result struct {
		Labels []string `json:"labels"`
		Count  int      `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 3 || result.Labels[0] != "bird" {
		t.Errorf("result = %+v", result)
	}

	if _, err := runApp(t, nil, failingProvider{}, "vocabulary"); err == nil {
		t.Error("expected error when the model is unavailable")
	}
}

func TestCLIThumbnail(t *testing.T) {
	out, err := runApp(t, nil, nil, "thumbnail", "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}
	var result struct {
		VideoID   string `json:"video_id"`
		Thumbnail string `json:"thumbnail"`
		Found     bool   `json:"found"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Found || result.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("result = %+v", result)
	}

	out, err = runApp(t, nil, nil, "thumbnail", "https://vimeo.com/123")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result.Found || result.Thumbnail != "" {
		t.Errorf("non-YouTube link resolved: %+v", result)
	}

	if _, err := runApp(t, nil, nil, "thumbnail"); err == nil {
		t.Error("expected error without url")
	}
}

func TestCLIFetchModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "meta":
			_, _ = w.Write([]byte(`{"classes":["cat"]}`))
		case "model":
			_, _ = w.Write([]byte("onnx"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.MetadataID = "meta"
	cfg.MetadataPath = filepath.Join(dir, "model_metadata.json")
	cfg.ModelID = "model"
	cfg.ModelPath = filepath.Join(dir, "model.onnx")

	out, err := runApp(t, cfg, nil, "fetch-model", "--url="+srv.URL+"/uc?id=%s")
	if err != nil {
		t.Fatalf("fetch-model failed: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result["model_downloaded"] != true || result["metadata_downloaded"] != true {
		t.Errorf("result = %v", result)
	}
	data, err := os.ReadFile(cfg.ModelPath)
	if err != nil || string(data) != "onnx" {
		t.Errorf("model file = %q, %v", data, err)
	}

	// Second run finds both files.
	out, err = runApp(t, cfg, nil, "fetch-model", "--url="+srv.URL+"/uc?id=%s")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result["model_downloaded"] != false {
		t.Errorf("model downloaded twice: %v", result)
	}

	cfg.ModelID = "missing"
	cfg.ModelPath = filepath.Join(dir, "other.onnx")
	_, err = runApp(t, cfg, nil, "fetch-model", "--url="+srv.URL+"/uc?id=%s")
	if err == nil || !strings.Contains(err.Error(), "[MODEL_ACQUISITION_ERROR]") {
		t.Errorf("error = %v, want MODEL_ACQUISITION_ERROR", err)
	}
}

func TestServeConfig(t *testing.T) {
	base := config.DefaultConfig()

	got := serveConfig(base, "0.0.0.0", 9090)
	if got.Bind != "0.0.0.0" || got.Port != 9090 {
		t.Errorf("overrides not applied: %s:%d", got.Bind, got.Port)
	}

	got = serveConfig(base, "", 0)
	if got.Bind != base.Bind || got.Port != base.Port {
		t.Errorf("empty flags changed config: %s:%d", got.Bind, got.Port)
	}
	if base.Port != 8080 {
		t.Error("serveConfig mutated the base config")
	}
}

func TestCLIServe_InvalidPort(t *testing.T) {
	_, err := runApp(t, nil, inference.Static{P: fakePredictor{}}, "serve", "--port=70000")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
}
