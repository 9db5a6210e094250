// Package content holds the per-label information panel entries.
package content

import (
	"context"
	"strings"
)

// MaxPerKind is the number of entries kept per kind for one label.
const MaxPerKind = 3

// Kind tags what an Entry's value means.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindText, KindImage, KindVideo}

// Entry is one user-supplied item: a text snippet, an image URL or a video URL.
type Entry struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// LabelContent is the information attached to one label.
// Entries keep the order they were entered in within each kind.
type LabelContent struct {
	Entries []Entry `json:"entries"`
}

// Texts returns the text snippets in entry order.
func (c LabelContent) Texts() []string { return c.values(KindText) }

// Images returns the image URLs in entry order.
func (c LabelContent) Images() []string { return c.values(KindImage) }

// Videos returns the video URLs in entry order.
func (c LabelContent) Videos() []string { return c.values(KindVideo) }

// IsEmpty reports whether no entries are stored.
func (c LabelContent) IsEmpty() bool { return len(c.Entries) == 0 }

// Count returns the number of entries of kind k.
func (c LabelContent) Count(k Kind) int {
	n := 0
	for _, e := range c.Entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (c LabelContent) values(k Kind) []string {
	out := make([]string, 0, MaxPerKind)
	for _, e := range c.Entries {
		if e.Kind == k {
			out = append(out, e.Value)
		}
	}
	return out
}

// Sanitize trims every input, drops blanks and keeps at most MaxPerKind
// entries per kind, preserving relative order.
func Sanitize(texts, images, videos []string) LabelContent {
	entries := make([]Entry, 0, 3*MaxPerKind)
	entries = appendKind(entries, KindText, texts)
	entries = appendKind(entries, KindImage, images)
	entries = appendKind(entries, KindVideo, videos)
	return LabelContent{Entries: entries}
}

func appendKind(dst []Entry, k Kind, raw []string) []Entry {
	kept := 0
	for _, s := range raw {
		if kept == MaxPerKind {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dst = append(dst, Entry{Kind: k, Value: s})
		kept++
	}
	return dst
}

// Registry maps labels to their content.
// Unset labels read as empty content. Set replaces all kinds for a label
// at once; there is no partial update and no delete (set all-blank to clear).
type Registry interface {
	Get(ctx context.Context, label string) (LabelContent, error)
	Set(ctx context.Context, label string, texts, images, videos []string) error
}
