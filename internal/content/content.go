// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package content extracts readable article text from web pages.
package content

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.osokin.dev/notifier/internal/version"

	readability "github.com/go-shiori/go-readability"
)

// Extractor pulls the readable article body out of a page, for use as
// summarization input.
type Extractor struct {
	HTTPClient *http.Client
	Slog       *slog.Logger
}

func (e *Extractor) slog() *slog.Logger {
	if e.Slog != nil {
		return e.Slog
	}
	return slog.Default()
}

func (e *Extractor) httpc() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

// Extract returns the readable text content of pageURL, or an empty string
// when the page can't be fetched or parsed. "No content" is a valid result:
// the caller skips summarization.
func (e *Extractor) Extract(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		e.slog().Warn("content fetch failed", "url", pageURL, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := e.httpc().Do(req)
	if err != nil {
		e.slog().Warn("content fetch failed", "url", pageURL, "error", err)
		return ""
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		e.slog().Warn("content fetch failed", "url", pageURL, "status", res.StatusCode)
		return ""
	}

	article, err := readability.FromReader(res.Body, req.URL)
	if err != nil {
		e.slog().Warn("content extraction failed", "url", pageURL, "error", err)
		return ""
	}

	return strings.TrimSpace(article.TextContent)
}
