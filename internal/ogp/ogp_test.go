// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package ogp

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"go.osokin.dev/notifier/internal/testutil"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
<meta property="og:title" content="Example Article">
<meta property="og:description" content="An article about examples.">
<meta property="og:url" content="https://example.com/article">
<meta property="og:image" content="https://example.com/cover.png">
<meta property="og:image:width" content="1200">
<meta property="og:image:height" content="630">
<meta property="og:image:type" content="image/png">
<meta property="og:image" content="https://example.com/alt.png">
</head>
<body>Hello.</body>
</html>`

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET example.com/article", handler)
	return &Fetcher{HTTPClient: testutil.MockHTTPClient(mux)}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "Twitterbot" {
			t.Errorf("User-Agent = %q, want %q", ua, "Twitterbot")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	})

	got := f.Fetch(context.Background(), "https://example.com/article")
	testutil.AssertEqual(t, got, Data{
		Title:       "Example Article",
		Description: "An article about examples.",
		URL:         "https://example.com/article",
		Images: []Image{
			{URL: "https://example.com/cover.png", Width: 1200, Height: 630, Type: "image/png"},
			{URL: "https://example.com/alt.png"},
		},
	})

	img, ok := got.FirstImage()
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, img.URL, "https://example.com/cover.png")
}

func TestFetchNonUTF8(t *testing.T) {
	t.Parallel()

	// "テスト" encoded as Shift_JIS.
	sjisTitle := []byte{0x83, 0x65, 0x83, 0x58, 0x83, 0x67}
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		fmt.Fprintf(w, `<html><head><meta property="og:title" content="%s"></head></html>`, sjisTitle)
	})

	got := f.Fetch(context.Background(), "https://example.com/article")
	testutil.AssertEqual(t, got.Title, "テスト")
}

func TestFetchDegradesToEmpty(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"not found": func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		},
		"no og tags": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html><head><title>plain</title></head></html>")
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := testFetcher(t, handler).Fetch(context.Background(), "https://example.com/article")
			testutil.AssertEqual(t, got, Data{})

			_, ok := got.FirstImage()
			testutil.AssertEqual(t, ok, false)
		})
	}
}

func TestFirstTextBlock(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		text string
		want string
	}{
		"first line":           {"Title of Paper\nAuthors here", "Title of Paper"},
		"leading blank lines":  {"\n\n  \nActual Title\nmore", "Actual Title"},
		"whitespace trimmed":   {"  Padded Title  \n", "Padded Title"},
		"empty text":           {"", ""},
		"only whitespace text": {" \n \n ", ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutil.AssertEqual(t, firstTextBlock(tc.text), tc.want)
		})
	}
}
