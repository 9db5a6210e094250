package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = map[string]any{"type": "string"}

var classifyToolDef = mcp.NewTool("image_classify",
	mcp.WithDescription("Classify an image and return the predicted label with sorted per-class probabilities. "+
		"Pass either a local file path (jpg, jpeg, png, webp, tiff) or base64-encoded image bytes. "+
		"The image becomes the held image; classifying the same bytes again reuses the cached result."),
	mcp.WithString("path", mcp.Description("Path to an image file")),
	mcp.WithString("image_base64", mcp.Description("Base64-encoded image bytes (standard encoding)")),
)

var contentGetToolDef = mcp.NewTool("label_content_get",
	mcp.WithDescription("Get the texts, image URLs and video URLs attached to a label. Unset labels return empty lists."),
	mcp.WithString("label", mcp.Required(), mcp.Description("Label name")),
)

var contentSetToolDef = mcp.NewTool("label_content_set",
	mcp.WithDescription("Replace all content attached to a label. Blank entries are dropped and at most "+
		"three entries per kind are kept. Passing no entries clears the label."),
	mcp.WithString("label", mcp.Required(), mcp.Description("Label name")),
	mcp.WithArray("texts", mcp.Description("Text snippets (markdown)"), mcp.Items(stringItems)),
	mcp.WithArray("images", mcp.Description("Image URLs"), mcp.Items(stringItems)),
	mcp.WithArray("videos", mcp.Description("Video URLs; YouTube links get a thumbnail"), mcp.Items(stringItems)),
)

var thumbnailToolDef = mcp.NewTool("video_thumbnail",
	mcp.WithDescription("Resolve a YouTube URL to its hqdefault thumbnail URL. No network access."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Video URL")),
)

var vocabularyToolDef = mcp.NewTool("model_vocabulary",
	mcp.WithDescription("List the labels the classifier can output, in model order. Loads the model on first use."),
)
