// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bluesky

import (
	"regexp"
	"strings"
)

// Facet marks a byte range of post text as a link. Offsets are into the
// UTF-8 encoding of the text, as the protocol requires, not rune indexes.
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

var linkRe = regexp.MustCompile(`https?://[^\s<>"]+`)

// LinkFacet returns a facet pointing the first occurrence of display in
// text at uri. The display text is usually a scheme-less, truncated form of
// uri, so regexp detection can't find it. ok is false when display doesn't
// occur in text.
func LinkFacet(text, display, uri string) (f Facet, ok bool) {
	start := strings.Index(text, display)
	if start < 0 || display == "" {
		return Facet{}, false
	}
	return Facet{
		Index: FacetIndex{ByteStart: start, ByteEnd: start + len(display)},
		Features: []FacetFeature{{
			Type: "app.bsky.richtext.facet#link",
			URI:  uri,
		}},
	}, true
}

// DetectLinkFacets finds URLs in text and returns link facets for them.
// Trailing sentence punctuation is not stripped; the bots always place
// links on their own line.
func DetectLinkFacets(text string) []Facet {
	var facets []Facet
	for _, loc := range linkRe.FindAllStringIndex(text, -1) {
		facets = append(facets, Facet{
			Index: FacetIndex{ByteStart: loc[0], ByteEnd: loc[1]},
			Features: []FacetFeature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  text[loc[0]:loc[1]],
			}},
		})
	}
	return facets
}
