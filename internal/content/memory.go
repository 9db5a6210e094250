package content

import (
	"context"
	"sync"
)

// MemoryRegistry is a Registry backed by a map.
type MemoryRegistry struct {
	mu     sync.RWMutex
	labels map[string]LabelContent
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{labels: make(map[string]LabelContent)}
}

// Get returns the content for label, or empty content if it was never set.
func (r *MemoryRegistry) Get(_ context.Context, label string) (LabelContent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.labels[label]
	if !ok {
		return LabelContent{}, nil
	}
	// Copy so callers can't mutate stored entries.
	entries := make([]Entry, len(c.Entries))
	copy(entries, c.Entries)
	return LabelContent{Entries: entries}, nil
}

// Set replaces the content for label.
func (r *MemoryRegistry) Set(_ context.Context, label string, texts, images, videos []string) error {
	c := Sanitize(texts, images, videos)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.IsEmpty() {
		delete(r.labels, label)
		return nil
	}
	r.labels[label] = c
	return nil
}
