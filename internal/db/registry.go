package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/snaplabel/internal/content"
)

// Registry is a content.Registry scoped to one session's rows.
type Registry struct {
	db        *sql.DB
	sessionID string
}

// NewRegistry returns the registry for sessionID. The session row must exist.
func NewRegistry(db *sql.DB, sessionID string) *Registry {
	return &Registry{db: db, sessionID: sessionID}
}

// Get returns the label's content, or empty content if it was never set.
func (r *Registry) Get(ctx context.Context, label string) (content.LabelContent, error) {
	return GetLabelContent(ctx, r.db, r.sessionID, label)
}

// Set sanitizes the inputs and replaces the label's content atomically.
func (r *Registry) Set(ctx context.Context, label string, texts, images, videos []string) error {
	return ReplaceLabelContent(ctx, r.db, r.sessionID, label, content.Sanitize(texts, images, videos))
}
