// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bluesky

import (
	"testing"

	"go.osokin.dev/notifier/internal/testutil"
)

func TestDetectLinkFacets(t *testing.T) {
	t.Parallel()

	t.Run("no links", func(t *testing.T) {
		t.Parallel()
		testutil.AssertEqual(t, len(DetectLinkFacets("plain text without links")), 0)
	})

	t.Run("single link", func(t *testing.T) {
		t.Parallel()

		text := "要約です\n\nTitle\nhttps://example.com/post"
		facets := DetectLinkFacets(text)
		testutil.AssertEqual(t, len(facets), 1)
		testutil.AssertEqual(t, facets[0].Features[0].URI, "https://example.com/post")
		testutil.AssertEqual(t, facets[0].Features[0].Type, "app.bsky.richtext.facet#link")

		// Offsets are bytes into the UTF-8 text, so the multibyte first line
		// pushes the range well past its rune count.
		start, end := facets[0].Index.ByteStart, facets[0].Index.ByteEnd
		testutil.AssertEqual(t, text[start:end], "https://example.com/post")
	})

	t.Run("multiple links", func(t *testing.T) {
		t.Parallel()

		facets := DetectLinkFacets("http://a.example\nhttps://b.example")
		testutil.AssertEqual(t, len(facets), 2)
		testutil.AssertEqual(t, facets[0].Features[0].URI, "http://a.example")
		testutil.AssertEqual(t, facets[1].Features[0].URI, "https://b.example")
	})
}

func TestLinkFacet(t *testing.T) {
	t.Parallel()

	text := "example.com/very/long/path...\nExample Post"
	f, ok := LinkFacet(text, "example.com/very/long/path...", "https://example.com/very/long/path/to/article")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, f.Index.ByteStart, 0)
	testutil.AssertEqual(t, f.Index.ByteEnd, len("example.com/very/long/path..."))
	testutil.AssertEqual(t, f.Features[0].URI, "https://example.com/very/long/path/to/article")

	_, ok = LinkFacet(text, "not in text", "https://example.com")
	testutil.AssertEqual(t, ok, false)

	_, ok = LinkFacet(text, "", "https://example.com")
	testutil.AssertEqual(t, ok, false)
}
