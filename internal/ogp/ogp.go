// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package ogp fetches Open Graph metadata for link previews.
package ogp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"
)

// fetchUserAgent makes link-preview crawler checks happy.
const fetchUserAgent = "Twitterbot"

// Image is a single og:image entry.
type Image struct {
	URL    string
	Width  int
	Height int
	Type   string
}

// Data holds Open Graph metadata for a page. The zero value means "no
// metadata": every field is optional; metadata fetch failure degrades to an
// empty Data, it never fails the item.
type Data struct {
	Title       string
	Description string
	URL         string
	Images      []Image
}

// FirstImage returns the first og:image entry, if any.
func (d Data) FirstImage() (Image, bool) {
	if len(d.Images) == 0 {
		return Image{}, false
	}
	return d.Images[0], true
}

// Fetcher fetches Open Graph metadata.
type Fetcher struct {
	HTTPClient *http.Client
	Slog       *slog.Logger
}

func (f *Fetcher) slog() *slog.Logger {
	if f.Slog != nil {
		return f.Slog
	}
	return slog.Default()
}

func (f *Fetcher) httpc() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// Fetch retrieves Open Graph metadata for pageURL. It never returns an
// error: all failures degrade to empty Data.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) Data {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		f.slog().Warn("metadata fetch failed", "url", pageURL, "error", err)
		return Data{}
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	res, err := f.httpc().Do(req)
	if err != nil {
		f.slog().Warn("metadata fetch failed", "url", pageURL, "error", err)
		return Data{}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		f.slog().Warn("metadata fetch failed", "url", pageURL, "status", res.StatusCode)
		return Data{}
	}

	ct := res.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/pdf" {
		return f.pdfTitle(res.Body)
	}

	return f.parseHTML(res.Body, ct, pageURL)
}

// parseHTML extracts og: meta tags, re-decoding the body when the page
// declares a non-UTF-8 charset.
func (f *Fetcher) parseHTML(body io.Reader, contentType, pageURL string) Data {
	r, err := charset.NewReader(body, contentType)
	if err != nil {
		f.slog().Warn("metadata charset detection failed", "url", pageURL, "error", err)
		return Data{}
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		f.slog().Warn("metadata parse failed", "url", pageURL, "error", err)
		return Data{}
	}

	var d Data
	doc.Find("meta[property][content]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		switch prop {
		case "og:title":
			d.Title = content
		case "og:description":
			d.Description = content
		case "og:url":
			d.URL = content
		case "og:image", "og:image:url", "og:image:secure_url":
			d.Images = append(d.Images, Image{URL: content})
		case "og:image:width":
			if n := len(d.Images); n > 0 {
				d.Images[n-1].Width, _ = strconv.Atoi(content)
			}
		case "og:image:height":
			if n := len(d.Images); n > 0 {
				d.Images[n-1].Height, _ = strconv.Atoi(content)
			}
		case "og:image:type":
			if n := len(d.Images); n > 0 {
				d.Images[n-1].Type = content
			}
		}
	})

	f.slog().Debug("fetched metadata",
		"url", pageURL,
		"has_title", d.Title != "",
		"has_description", d.Description != "",
		"images", len(d.Images),
	)
	return d
}

// pdfTitle extracts the first text block of a PDF and uses it as a
// substitute title.
func (f *Fetcher) pdfTitle(body io.Reader) Data {
	raw, err := io.ReadAll(body)
	if err != nil {
		f.slog().Warn("pdf read failed", "error", err)
		return Data{}
	}

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		f.slog().Warn("pdf parse failed", "error", err)
		return Data{}
	}

	tr, err := r.GetPlainText()
	if err != nil {
		f.slog().Warn("pdf text extraction failed", "error", err)
		return Data{}
	}
	text, err := io.ReadAll(tr)
	if err != nil {
		f.slog().Warn("pdf text extraction failed", "error", err)
		return Data{}
	}

	title := firstTextBlock(string(text))
	if title == "" {
		return Data{}
	}
	return Data{Title: title}
}

func firstTextBlock(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}
