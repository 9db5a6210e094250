package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/errors"
	"github.com/hpungsan/snaplabel/internal/imaging"
	"github.com/hpungsan/snaplabel/internal/inference"
	"github.com/hpungsan/snaplabel/internal/session"
	"github.com/hpungsan/snaplabel/internal/thumbnail"
	"github.com/hpungsan/snaplabel/internal/view"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sess     *session.Session
	provider inference.Provider
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *session.Session, provider inference.Provider, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{sess: sess, provider: provider, logger: logger}
}

// Request types for each tool

// ClassifyRequest represents the arguments for image_classify.
type ClassifyRequest struct {
	Path        string `json:"path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// ContentGetRequest represents the arguments for label_content_get.
type ContentGetRequest struct {
	Label string `json:"label"`
}

// ContentSetRequest represents the arguments for label_content_set.
type ContentSetRequest struct {
	Label  string   `json:"label"`
	Texts  []string `json:"texts,omitempty"`
	Images []string `json:"images,omitempty"`
	Videos []string `json:"videos,omitempty"`
}

// ThumbnailRequest represents the arguments for video_thumbnail.
type ThumbnailRequest struct {
	URL string `json:"url"`
}

// Output types

// ClassifyOutput is the image_classify result.
type ClassifyOutput struct {
	Label  string     `json:"label"`
	Index  int        `json:"index"`
	Format string     `json:"format"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Rows   []view.Row `json:"rows"`
}

// ContentOutput is one label's content.
type ContentOutput struct {
	Label  string   `json:"label"`
	Texts  []string `json:"texts"`
	Images []string `json:"images"`
	Videos []string `json:"videos"`
}

// ThumbnailOutput is the video_thumbnail result.
type ThumbnailOutput struct {
	URL       string `json:"url"`
	VideoID   string `json:"video_id,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Found     bool   `json:"found"`
}

// VocabularyOutput is the model_vocabulary result.
type VocabularyOutput struct {
	Labels []string `json:"labels"`
	Count  int      `json:"count"`
}

// HandleClassify handles the image_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	data, err := readImage(input)
	if err != nil {
		return errorResult(err), nil
	}

	h.sess.Hold(data)
	res, err := h.sess.Classify(ctx, h.provider)
	if err != nil {
		h.logger.Warn("classify failed", zap.Error(err))
		return errorResult(err), nil
	}

	return successResult(ClassifyOutput{
		Label:  res.Prediction.Label,
		Index:  res.Prediction.Index,
		Format: res.Format,
		Width:  res.Width,
		Height: res.Height,
		Rows:   view.Rows(res.Vocabulary, res.Prediction.Probs, res.Prediction.Label),
	})
}

// HandleContentGet handles the label_content_get tool call.
func (h *Handlers) HandleContentGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return errorResult(errors.NewInvalidRequest("label is required")), nil
	}

	return h.contentResult(ctx, label)
}

// HandleContentSet handles the label_content_set tool call.
func (h *Handlers) HandleContentSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContentSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return errorResult(errors.NewInvalidRequest("label is required")), nil
	}

	if err := h.sess.Registry().Set(ctx, label, input.Texts, input.Images, input.Videos); err != nil {
		return errorResult(err), nil
	}

	return h.contentResult(ctx, label)
}

// HandleThumbnail handles the video_thumbnail tool call.
func (h *Handlers) HandleThumbnail(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ThumbnailRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	id, _ := thumbnail.VideoID(input.URL)
	thumb, ok := thumbnail.Resolve(input.URL)
	return successResult(ThumbnailOutput{
		URL:       input.URL,
		VideoID:   id,
		Thumbnail: thumb,
		Found:     ok,
	})
}

// HandleVocabulary handles the model_vocabulary tool call.
func (h *Handlers) HandleVocabulary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := h.provider.Predictor(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	vocab := p.Vocabulary()
	return successResult(VocabularyOutput{Labels: vocab, Count: len(vocab)})
}

func (h *Handlers) contentResult(ctx context.Context, label string) (*mcp.CallToolResult, error) {
	lc, err := h.sess.Registry().Get(ctx, label)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(ContentOutput{
		Label:  label,
		Texts:  lc.Texts(),
		Images: lc.Images(),
		Videos: lc.Videos(),
	})
}

// readImage loads image bytes from exactly one of path or image_base64.
func readImage(input ClassifyRequest) ([]byte, error) {
	hasPath := strings.TrimSpace(input.Path) != ""
	hasData := strings.TrimSpace(input.ImageBase64) != ""

	switch {
	case hasPath && hasData:
		return nil, errors.NewInvalidRequest("pass either path or image_base64, not both")
	case hasPath:
		if !imaging.AllowedExtension(input.Path) {
			return nil, errors.NewInvalidRequest("unsupported file type (allowed: jpg, png, jpeg, webp, tiff)")
		}
		data, err := os.ReadFile(input.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFound(input.Path)
			}
			return nil, errors.NewInternal(err)
		}
		if len(data) == 0 {
			return nil, errors.NewInvalidRequest("image file is empty")
		}
		return data, nil
	case hasData:
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(input.ImageBase64))
		if err != nil {
			return nil, errors.NewInvalidRequest("image_base64 is not valid base64")
		}
		if len(data) == 0 {
			return nil, errors.NewInvalidRequest("image is empty")
		}
		return data, nil
	default:
		return nil, errors.NewInvalidRequest("path or image_base64 is required")
	}
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if aErr, ok := err.(*errors.AppError); ok {
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": aErr.Message,
			"status":  aErr.Status,
		}
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
