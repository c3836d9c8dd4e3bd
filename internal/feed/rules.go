// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package feed

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mmcdole/gofeed"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// Rules filters feed items through user-supplied Starlark predicates. A
// rules file may define two functions, each taking a single item struct
// (with title, url, description and categories fields) and returning a
// bool:
//
//	def block(item): return "sponsored" in item.title
//	def keep(item): return item.url.startswith("https://example.com")
//
// An item survives when block (if defined) returns False and keep (if
// defined) returns True.
type Rules struct {
	keep  *starlark.Function
	block *starlark.Function
	slog  *slog.Logger
}

// LoadRules parses a Starlark rules file. It returns nil (with no error)
// when path is empty: no rules means every item is kept.
func LoadRules(path string, lg *slog.Logger) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	if lg == nil {
		lg = slog.Default()
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{},
		&starlark.Thread{
			Print: func(_ *starlark.Thread, msg string) { lg.Info(msg) },
		},
		path, src, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	r := &Rules{slog: lg}
	if fn, ok := globals["keep"].(*starlark.Function); ok {
		r.keep = fn
	}
	if fn, ok := globals["block"].(*starlark.Function); ok {
		r.block = fn
	}
	if r.keep == nil && r.block == nil {
		return nil, fmt.Errorf("rules file %s defines neither keep nor block", path)
	}
	return r, nil
}

// Keep reports whether the item passes the rules.
func (r *Rules) Keep(item *gofeed.Item) bool {
	if r.block != nil && r.apply(r.block, item) {
		return false
	}
	if r.keep != nil && !r.apply(r.keep, item) {
		return false
	}
	return true
}

func (r *Rules) apply(rule *starlark.Function, item *gofeed.Item) bool {
	var categories []starlark.Value
	for _, category := range item.Categories {
		categories = append(categories, starlark.String(category))
	}
	val, err := starlark.Call(
		&starlark.Thread{
			Print: func(_ *starlark.Thread, msg string) { r.slog.Info(msg) },
		},
		rule,
		starlark.Tuple{starlarkstruct.FromStringDict(
			starlarkstruct.Default,
			starlark.StringDict{
				"title":       starlark.String(item.Title),
				"url":         starlark.String(item.Link),
				"description": starlark.String(item.Description),
				"categories":  starlark.NewList(categories),
			},
		)},
		[]starlark.Tuple{},
	)
	if err != nil {
		r.slog.Warn("applying rule for item", "item", item.Link, "error", err)
		return false
	}
	ret, ok := val.(starlark.Bool)
	if !ok {
		r.slog.Warn("rule returned non-boolean value", "item", item.Link)
		return false
	}
	return bool(ret)
}
