// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package summary

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Structural rules for a generated summary: exactly two non-empty lines, no
// Japanese punctuation, at most maxGraphemes user-perceived characters.

const maxGraphemes = 100

var forbiddenPunctuation = []rune{'。', '、'}

// Line-ending vocabularies of the two-sentence style. Mismatches are soft:
// they surface as warnings, never as validation errors.
var (
	firstLineEndings = []string{
		"らしい", "するやつ", "なツール",
		"かも", "っぽい", "みたい",
		"そう", "な印象", "ってところ",
	}
	secondLineEndings = []string{
		"に期待", "が楽しみ", "を試したい",
		"が良いな", "かも", "気になる", "かな", "そう",
	}
)

// Result is the outcome of validating a candidate summary.
type Result struct {
	Valid bool `json:"isValid"`
	// Errors are human-readable violation descriptions, also used as feedback
	// for the next generation attempt.
	Errors []string `json:"errors,omitempty"`
	// Warnings are soft style observations that never fail validation.
	Warnings []string `json:"-"`
}

// Feedback joins the violations into a single feedback string.
func (r Result) Feedback() string { return strings.Join(r.Errors, "\n") }

// Validate checks the structural rules of a candidate summary. It is a pure
// function: style-pattern mismatches are reported as warnings only.
func Validate(text string) Result {
	var res Result

	lines := nonEmptyLines(text)
	if len(lines) != 2 {
		res.Errors = append(res.Errors,
			fmt.Sprintf("要約は2文構成（改行区切りの2行）でなければなりません（現在: %d行）", len(lines)))
	}

	for _, r := range forbiddenPunctuation {
		if strings.ContainsRune(text, r) {
			res.Errors = append(res.Errors,
				fmt.Sprintf("句読点「%c」は使用できません", r))
		}
	}

	if n := uniseg.GraphemeClusterCount(text); n > maxGraphemes {
		res.Errors = append(res.Errors,
			fmt.Sprintf("要約は%d文字以内でなければなりません（現在: %d文字）", maxGraphemes, n))
	}

	if len(lines) == 2 {
		if !hasAnySuffix(lines[0], firstLineEndings) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("1文目が想定の文末表現で終わっていません: %q", lines[0]))
		}
		if !hasAnySuffix(lines[1], secondLineEndings) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("2文目が想定の文末表現で終わっていません: %q", lines[1]))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	return lines
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// TruncateGraphemes shortens s to at most max user-perceived characters,
// appending an ellipsis when truncation happens.
func TruncateGraphemes(s string, max int) string {
	const ellipsis = "..."
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	keep := max - len(ellipsis)
	var sb strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		sb.WriteString(g.Str())
	}
	return sb.String() + ellipsis
}
