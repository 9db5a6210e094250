// Package thumbnail derives YouTube thumbnail URLs from free-form video links.
package thumbnail

import (
	"fmt"
	"regexp"
	"strings"
)

// videoIDPatterns are tried in order; the first match wins.
var videoIDPatterns = []*regexp.Regexp{
	// watch?v=<id>, /embed/<id>, /shorts/<id>, ...
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:\?|&|/|$)`),
	// youtu.be/<id> followed by anything
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
}

// VideoID extracts the 11-character video identifier from url.
// Surrounding whitespace is ignored.
func VideoID(url string) (string, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", false
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Resolve returns the high-quality thumbnail URL for a video link.
// It reports false when no identifier can be extracted; callers should
// fall back to a plain link.
func Resolve(url string) (string, bool) {
	id, ok := VideoID(url)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", id), true
}
