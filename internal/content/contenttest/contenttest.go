// Package contenttest provides a conformance suite for content.Registry
// implementations.
package contenttest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/snaplabel/internal/content"
)

// RunRegistryTests exercises the Registry contract against registries
// produced by newRegistry. Each subtest gets a fresh registry.
func RunRegistryTests(t *testing.T, newRegistry func(t *testing.T) content.Registry) {
	t.Helper()
	ctx := context.Background()

	t.Run("unset label is empty", func(t *testing.T) {
		r := newRegistry(t)
		got, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.True(t, got.IsEmpty())
		require.Empty(t, got.Texts())
		require.Empty(t, got.Images())
		require.Empty(t, got.Videos())

		// Reading twice has no side effect.
		again, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.Equal(t, got, again)
	})

	t.Run("blanks are compacted", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "cat", []string{"", "a", "b"}, nil, nil))

		got, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, got.Texts())
		require.Empty(t, got.Images())
		require.Empty(t, got.Videos())
	})

	t.Run("entries are trimmed and capped per kind", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "dog",
			[]string{"  one ", "two", "   ", "three", "four"},
			[]string{"https://example.com/a.png", "", "https://example.com/b.png"},
			[]string{"https://youtu.be/dQw4w9WgXcQ"},
		))

		got, err := r.Get(ctx, "dog")
		require.NoError(t, err)
		require.Equal(t, []string{"one", "two", "three"}, got.Texts())
		require.Equal(t, []string{"https://example.com/a.png", "https://example.com/b.png"}, got.Images())
		require.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ"}, got.Videos())
	})

	t.Run("set replaces instead of merging", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "cat", []string{"x"}, []string{"https://example.com/x.png"}, nil))
		require.NoError(t, r.Set(ctx, "cat", []string{"y"}, nil, nil))

		got, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.Equal(t, []string{"y"}, got.Texts())
		require.Empty(t, got.Images())
	})

	t.Run("all blank clears", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "cat", []string{"x"}, nil, nil))
		require.NoError(t, r.Set(ctx, "cat", []string{"", " "}, []string{""}, []string{"\t"}))

		got, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.True(t, got.IsEmpty())
	})

	t.Run("labels are independent", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "cat", []string{"meow"}, nil, nil))
		require.NoError(t, r.Set(ctx, "dog", []string{"woof"}, nil, nil))

		cat, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		dog, err := r.Get(ctx, "dog")
		require.NoError(t, err)
		require.Equal(t, []string{"meow"}, cat.Texts())
		require.Equal(t, []string{"woof"}, dog.Texts())
	})

	t.Run("labels outside any vocabulary are accepted", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "not-a-class", []string{"ok"}, nil, nil))

		got, err := r.Get(ctx, "not-a-class")
		require.NoError(t, err)
		require.Equal(t, []string{"ok"}, got.Texts())
	})

	t.Run("kinds keep entry order", func(t *testing.T) {
		r := newRegistry(t)
		require.NoError(t, r.Set(ctx, "cat",
			[]string{"t1", "t2"},
			[]string{"i1"},
			[]string{"v1", "", "v3"},
		))

		got, err := r.Get(ctx, "cat")
		require.NoError(t, err)
		require.Equal(t, []content.Entry{
			{Kind: content.KindText, Value: "t1"},
			{Kind: content.KindText, Value: "t2"},
			{Kind: content.KindImage, Value: "i1"},
			{Kind: content.KindVideo, Value: "v1"},
			{Kind: content.KindVideo, Value: "v3"},
		}, got.Entries)
	})
}
