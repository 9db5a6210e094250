package content_test

import (
	"context"
	"testing"

	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/content/contenttest"
)

func TestMemoryRegistry(t *testing.T) {
	contenttest.RunRegistryTests(t, func(t *testing.T) content.Registry {
		return content.NewMemoryRegistry()
	})
}

func TestMemoryRegistry_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := content.NewMemoryRegistry()
	if err := r.Set(ctx, "cat", []string{"a"}, nil, nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, _ := r.Get(ctx, "cat")
	got.Entries[0].Value = "mutated"

	again, _ := r.Get(ctx, "cat")
	if again.Texts()[0] != "a" {
		t.Errorf("stored entry was mutated through Get result: %q", again.Texts()[0])
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name       string
		texts      []string
		images     []string
		videos     []string
		wantTexts  []string
		wantImages []string
		wantVideos []string
	}{
		{
			name:       "all nil",
			wantTexts:  []string{},
			wantImages: []string{},
			wantVideos: []string{},
		},
		{
			name:       "gap in the middle",
			texts:      []string{"a", "", "c"},
			wantTexts:  []string{"a", "c"},
			wantImages: []string{},
			wantVideos: []string{},
		},
		{
			name:       "more than three keeps first three non-blank",
			images:     []string{"", "1", "2", " ", "3", "4"},
			wantTexts:  []string{},
			wantImages: []string{"1", "2", "3"},
			wantVideos: []string{},
		},
		{
			name:       "whitespace only is blank",
			videos:     []string{" \t", "\n", "v"},
			wantTexts:  []string{},
			wantImages: []string{},
			wantVideos: []string{"v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := content.Sanitize(tt.texts, tt.images, tt.videos)
			assertStrings(t, "texts", got.Texts(), tt.wantTexts)
			assertStrings(t, "images", got.Images(), tt.wantImages)
			assertStrings(t, "videos", got.Videos(), tt.wantVideos)
		})
	}
}

func TestLabelContent_Count(t *testing.T) {
	c := content.Sanitize([]string{"a", "b"}, []string{"i"}, nil)
	if c.Count(content.KindText) != 2 {
		t.Errorf("Count(text) = %d, want 2", c.Count(content.KindText))
	}
	if c.Count(content.KindImage) != 1 {
		t.Errorf("Count(image) = %d, want 1", c.Count(content.KindImage))
	}
	if c.Count(content.KindVideo) != 0 {
		t.Errorf("Count(video) = %d, want 0", c.Count(content.KindVideo))
	}
}

func assertStrings(t *testing.T, field string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", field, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s[%d] = %q, want %q", field, i, got[i], want[i])
		}
	}
}
