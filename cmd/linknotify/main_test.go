// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/cli"
	"go.osokin.dev/notifier/internal/gemini"
	"go.osokin.dev/notifier/internal/testutil"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta property="og:title" content="Release Notes">
<meta property="og:description" content="What changed in this release.">
<title>Release Notes</title>
</head>
<body>
<article>
<h1>Release Notes</h1>
<p>This release focuses on performance. The parser is now twice as fast
on large documents, and memory usage dropped by a third. We also fixed
a long-standing bug in the incremental mode that could drop updates
under heavy load.</p>
<p>Upgrading is safe for all users. The configuration format is
unchanged and no migration steps are needed for existing deployments.</p>
</article>
</body>
</html>`

const testSummary = "パーサーが2倍速くなったらしい\nメモリ使用量も3分の1減って気になる"

type fixture struct {
	t   *testing.T
	bot *bot
	env *cli.Env

	stderr *bytes.Buffer

	pageHTML string
	sessions int
	records  []map[string]any
	hooks    []map[string]string
}

func newFixture(t *testing.T, getenv map[string]string) *fixture {
	t.Helper()

	f := &fixture{t: t, pageHTML: pageHTML}

	mux := http.NewServeMux()
	mux.HandleFunc("GET example.com/release", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, f.pageHTML)
	})
	mux.HandleFunc("POST generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-lite:generateContent", func(w http.ResponseWriter, r *http.Request) {
		var params gemini.GenerateContentParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatal(err)
		}
		text := testSummary
		if params.GenerationConfig != nil && params.GenerationConfig.ResponseMIMEType == "application/json" {
			text = `{"isValid": true, "feedback": ""}`
		}
		json.NewEncoder(w).Encode(gemini.GenerateContentResponse{
			Candidates: []*gemini.Candidate{{
				Content: &gemini.Content{Parts: []*gemini.Part{{Text: text}}},
			}},
		})
	})
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		f.sessions++
		io.WriteString(w, `{"accessJwt": "jwt-abc", "did": "did:plc:test123"}`)
	})
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Record map[string]any `json:"record"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		f.records = append(f.records, body.Record)
		io.WriteString(w, "{}")
	})
	mux.HandleFunc("POST hooks.example.com/notify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		f.hooks = append(f.hooks, body)
	})

	f.stderr = new(bytes.Buffer)
	f.bot = &bot{
		httpc: testutil.MockHTTPClient(mux),
		now:   func() time.Time { return time.Date(2025, time.August, 1, 13, 0, 0, 0, time.UTC) },
	}
	f.env = &cli.Env{
		Getenv: func(name string) string { return getenv[name] },
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: f.stderr,
	}
	return f
}

func testGetenv() map[string]string {
	return map[string]string{
		"LINK":               "https://example.com/release",
		"BLUESKY_IDENTIFIER": "bot.example.com",
		"BLUESKY_PASSWORD":   "hunter2",
		"GOOGLE_AI_API_KEY":  "test-key",
		"WEBHOOK_URL":        "https://hooks.example.com/notify",
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t, testGetenv())

	if err := f.bot.Run(context.Background(), f.env); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, len(f.records), 1)
	rec := f.records[0]
	testutil.AssertEqual(t, rec["text"], testSummary+"\n\nRelease Notes\nhttps://example.com/release")

	embed := rec["embed"].(map[string]any)
	external := embed["external"].(map[string]any)
	testutil.AssertEqual(t, external["uri"], "https://example.com/release")
	testutil.AssertEqual(t, external["title"], "Release Notes")
	testutil.AssertEqual(t, external["description"], "What changed in this release.")

	testutil.AssertEqual(t, f.hooks, []map[string]string{
		{"value1": testSummary + "\n\nRelease Notes\nhttps://example.com/release"},
	})
}

func TestRunNoLink(t *testing.T) {
	getenv := testGetenv()
	getenv["LINK"] = "  "
	f := newFixture(t, getenv)

	if err := f.bot.Run(context.Background(), f.env); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, f.sessions, 0)
	testutil.AssertEqual(t, len(f.records), 0)
	if !strings.Contains(f.stderr.String(), "No link provided") {
		t.Errorf("stderr %q doesn't explain the exit", f.stderr)
	}
}

func TestRunNoSummary(t *testing.T) {
	f := newFixture(t, testGetenv())
	f.pageHTML = "<html><head><title>empty</title></head><body></body></html>"

	if err := f.bot.Run(context.Background(), f.env); err != nil {
		t.Fatal(err)
	}

	// Without article text there is no summary, and without a summary there
	// is no post.
	testutil.AssertEqual(t, f.sessions, 0)
	testutil.AssertEqual(t, len(f.records), 0)
	testutil.AssertEqual(t, len(f.hooks), 0)
	if !strings.Contains(f.stderr.String(), "No summary generated") {
		t.Errorf("stderr %q doesn't explain the exit", f.stderr)
	}
}

func TestRunMissingConfig(t *testing.T) {
	f := newFixture(t, map[string]string{"LINK": "https://example.com/release"})

	err := f.bot.Run(context.Background(), f.env)
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	testutil.AssertEqual(t, apperr.CodeOf(err), apperr.CodeConfig)
	if !strings.Contains(err.Error(), "BLUESKY_IDENTIFIER, BLUESKY_PASSWORD, GOOGLE_AI_API_KEY") {
		t.Errorf("error %q doesn't list all missing variables", err)
	}
}
