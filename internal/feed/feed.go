// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package feed fetches RSS/Atom feeds and tracks which items have already
// been posted.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/version"

	"github.com/mmcdole/gofeed"
)

// Item is a single feed entry, normalized for the posting pipeline. Items
// with the same ID are considered the same entry across runs.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Published   time.Time `json:"published"`
	Description string    `json:"description,omitempty"`
}

// Fetcher downloads and parses a feed.
type Fetcher struct {
	HTTPClient *http.Client
	Slog       *slog.Logger
	Rules      *Rules // optional keep/block filtering
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

// Fetch retrieves feedURL and returns its items ordered oldest first.
// Relative item links are resolved against the feed URL.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "feed.Fetch", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := f.httpc().Do(req)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "feed.Fetch", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.CodeNetwork, "feed.Fetch", "fetching %s: want 200, got %d", feedURL, res.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(res.Body)
	if err != nil {
		return nil, apperr.New(apperr.CodeParse, "feed.Fetch", err)
	}

	base, _ := url.Parse(feedURL)

	var items []Item
	for _, fi := range parsed.Items {
		it := Item{
			ID:          itemID(fi),
			Title:       strings.TrimSpace(fi.Title),
			Link:        resolveLink(base, fi.Link),
			Description: strings.TrimSpace(fi.Description),
		}
		if fi.PublishedParsed != nil {
			it.Published = *fi.PublishedParsed
		} else if fi.UpdatedParsed != nil {
			it.Published = *fi.UpdatedParsed
		}

		if f.Rules != nil && !f.Rules.Keep(fi) {
			f.slog().Debug("item filtered out by rules", "item", it.Link)
			continue
		}

		items = append(items, it)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.Before(items[j].Published)
	})

	return items, nil
}

func itemID(fi *gofeed.Item) string {
	if fi.GUID != "" {
		return fi.GUID
	}
	return fi.Link
}

func resolveLink(base *url.URL, link string) string {
	link = strings.TrimSpace(link)
	if base == nil || link == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

// NewerThan returns the items published strictly after cutoff, preserving
// order. Items without a publication time are dropped.
func NewerThan(items []Item, cutoff time.Time) []Item {
	var out []Item
	for _, it := range items {
		if it.Published.IsZero() || !it.Published.After(cutoff) {
			continue
		}
		out = append(out, it)
	}
	return out
}
