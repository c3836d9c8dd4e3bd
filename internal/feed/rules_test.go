// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package feed

import (
	"os"
	"path/filepath"
	"testing"

	"go.osokin.dev/notifier/internal/testutil"

	"github.com/mmcdole/gofeed"
)

func loadTestRules(t *testing.T, src string) *Rules {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.star")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRules(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestLoadRulesEmptyPath(t *testing.T) {
	t.Parallel()

	r, err := LoadRules("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("LoadRules(\"\") = %v, want nil", r)
	}
}

func TestLoadRulesErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax error": "def keep(item) return True",
		"no rules":     "x = 1",
		"missing file": "",
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "rules.star")
			if name != "missing file" {
				if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := LoadRules(path, nil); err == nil {
				t.Fatal("LoadRules succeeded, want error")
			}
		})
	}
}

func TestRulesBlock(t *testing.T) {
	t.Parallel()

	r := loadTestRules(t, `def block(item): return "sponsored" in item.title`)

	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Title: "sponsored: buy stuff"}), false)
	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Title: "regular post"}), true)
}

func TestRulesKeep(t *testing.T) {
	t.Parallel()

	r := loadTestRules(t, `def keep(item): return item.url.startswith("https://example.com")`)

	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Link: "https://example.com/post"}), true)
	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Link: "https://other.org/post"}), false)
}

func TestRulesCategories(t *testing.T) {
	t.Parallel()

	r := loadTestRules(t, `def block(item): return "spam" in item.categories`)

	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Categories: []string{"news", "spam"}}), false)
	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Categories: []string{"news"}}), true)
}

func TestRulesNonBooleanReturn(t *testing.T) {
	t.Parallel()

	// A rule returning a non-boolean counts as false: block doesn't block,
	// keep doesn't keep.
	r := loadTestRules(t, `def keep(item): return "some string"`)
	testutil.AssertEqual(t, r.Keep(&gofeed.Item{Title: "post"}), false)
}
