// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package format composes the text payloads for both publish channels.
package format

import (
	"net/url"
	"strings"

	"github.com/rivo/uniseg"
)

// Display limits, in grapheme clusters. A string over its max is cut at the
// ellipsis length and "..." is appended, so the result lands under the max.
const (
	linkDisplayMax      = 30
	linkDisplayEllipsis = 26
	titleMax            = 100
	titleEllipsis       = 96

	// SummaryMax caps the summary line of a post.
	SummaryMax = 200
)

func truncate(s string, max, keep int) string {
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	var sb strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		sb.WriteString(g.Str())
	}
	return sb.String() + "..."
}

// DisplayLink renders rawURL as the compact host+path form shown in a post
// body, truncated to the link display limit.
func DisplayLink(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return truncate(rawURL, linkDisplayMax, linkDisplayEllipsis)
	}
	hostWithPath := u.Host + strings.TrimSuffix(u.Path, "/")
	return truncate(hostWithPath, linkDisplayMax, linkDisplayEllipsis)
}

// Title truncates a page title to the title display limit.
func Title(title string) string {
	return truncate(title, titleMax, titleEllipsis)
}

// CardPost is a post whose first line is a compact display link backed by a
// link facet.
type CardPost struct {
	Text        string
	Link        string // full URL the facet points at
	LinkDisplay string // the text of the link line
}

// NewCardPost composes the display-link style post body: the link line
// first, then the title line if there is a title.
func NewCardPost(link, title string) CardPost {
	display := DisplayLink(link)
	text := display
	if title != "" {
		text += "\n" + Title(title)
	}
	return CardPost{Text: text, Link: link, LinkDisplay: display}
}

// SummaryPost composes the post body for summarizing bots: the summary
// paragraph, a blank line, then title and full URL. An empty summary
// degrades to just title and URL.
func SummaryPost(summary, title, link string) string {
	text := link
	if title != "" {
		text = Title(title) + "\n" + link
	}
	if summary != "" {
		text = summary + "\n\n" + text
	}
	return text
}

// WebhookMessage composes the webhook notification text. Without a title it
// is the bare URL.
func WebhookMessage(summary, title, link string) string {
	if title == "" {
		return link
	}
	text := Title(title) + "\n" + link
	if summary != "" {
		text = summary + "\n\n" + text
	}
	return text
}
