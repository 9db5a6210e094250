// Package view turns predictions and label content into template-ready values.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/thumbnail"
)

// Row is one probability bar.
type Row struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"` // two decimals, no % sign
	Width       string  `json:"width"`   // bar width percentage, clamped to [0, 100]
	Highlight   bool    `json:"highlight"`
}

// Rows returns one row per vocabulary label, sorted by descending
// probability. Equal probabilities keep vocabulary order. Only the row
// whose label equals top is highlighted. Missing probabilities count as 0.
func Rows(vocab []string, probs []float64, top string) []Row {
	rows := make([]Row, len(vocab))
	for i, label := range vocab {
		var p float64
		if i < len(probs) {
			p = probs[i]
		}
		pct := p * 100
		rows[i] = Row{
			Label:       label,
			Probability: p,
			Percent:     fmt.Sprintf("%.2f", pct),
			Width:       fmt.Sprintf("%.4f", clamp(pct, 0, 100)),
			Highlight:   label == top,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Probability > rows[j].Probability
	})
	return rows
}

// SelectLabel picks the label whose content the info panel shows: the
// requested label if it is in the vocabulary, else the predicted label if
// present, else the first vocabulary label. Returns "" for an empty vocabulary.
func SelectLabel(vocab []string, requested, predicted string) string {
	if requested != "" && contains(vocab, requested) {
		return requested
	}
	if contains(vocab, predicted) {
		return predicted
	}
	if len(vocab) > 0 {
		return vocab[0]
	}
	return ""
}

// Card is one entry in the info panel.
type Card struct {
	Kind      content.Kind
	Text      template.HTML // rendered markdown, text cards only
	URL       string
	Thumbnail string // video cards; empty means render a plain link
}

// HasThumbnail reports whether a video card resolved to a thumbnail.
func (c Card) HasThumbnail() bool { return c.Thumbnail != "" }

// Panel is the info panel for one label.
type Panel struct {
	Label  string
	Texts  []Card
	Images []Card
	Videos []Card
}

// TextCount returns the number of text cards.
func (p Panel) TextCount() int { return len(p.Texts) }

// ImageCount returns the number of image cards.
func (p Panel) ImageCount() int { return len(p.Images) }

// VideoCount returns the number of video cards.
func (p Panel) VideoCount() int { return len(p.Videos) }

// IsEmpty reports whether the panel has no cards.
func (p Panel) IsEmpty() bool {
	return len(p.Texts) == 0 && len(p.Images) == 0 && len(p.Videos) == 0
}

// BuildPanel renders label content into cards. Image URLs are not fetched.
func BuildPanel(label string, c content.LabelContent) Panel {
	p := Panel{Label: label}
	for _, e := range c.Entries {
		switch e.Kind {
		case content.KindText:
			if len(p.Texts) < content.MaxPerKind {
				p.Texts = append(p.Texts, Card{Kind: e.Kind, Text: RenderMarkdown(e.Value)})
			}
		case content.KindImage:
			if len(p.Images) < content.MaxPerKind {
				p.Images = append(p.Images, Card{Kind: e.Kind, URL: e.Value})
			}
		case content.KindVideo:
			if len(p.Videos) < content.MaxPerKind {
				thumb, _ := thumbnail.Resolve(e.Value)
				p.Videos = append(p.Videos, Card{Kind: e.Kind, URL: e.Value, Thumbnail: thumb})
			}
		}
	}
	return p
}

// RenderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is omitted.
func RenderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String()) //nolint:gosec // goldmark escapes raw HTML by default
}

func contains(vocab []string, label string) bool {
	for _, v := range vocab {
		if v == label {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
