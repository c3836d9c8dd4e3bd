// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/testutil"
)

const (
	testJWT = "jwt-abc"
	testDID = "did:plc:test123"
)

func sessionHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatal(err)
		}
		if creds.Identifier != "bot.example.com" || creds.Password != "hunter2" {
			http.Error(w, `{"error":"AuthenticationRequired"}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"accessJwt":%q,"did":%q}`, testJWT, testDID)
	}
}

func testClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.server.createSession", sessionHandler(t))
	return &Client{
		Identifier: "bot.example.com",
		Password:   "hunter2",
		HTTPClient: testutil.MockHTTPClient(mux),
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.NewServeMux())
	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.accessJWT, testJWT)
	testutil.AssertEqual(t, c.did, testDID)
}

func TestLoginFailureIsAuthError(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.NewServeMux())
	c.Password = "wrong"

	err := c.Login(context.Background())
	if err == nil {
		t.Fatal("Login succeeded with a wrong password")
	}
	testutil.AssertEqual(t, apperr.CodeOf(err), apperr.CodeAuth)
	testutil.AssertEqual(t, apperr.Fatal(err), true)
}

func TestUploadBlob(t *testing.T) {
	t.Parallel()

	blobJSON := `{"$type":"blob","ref":{"$link":"bafyblob123"},"mimeType":"image/jpeg","size":3}`

	mux := http.NewServeMux()
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.Header.Get("Authorization"), "Bearer "+testJWT)
		testutil.AssertEqual(t, r.Header.Get("Content-Type"), "image/jpeg")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, body, []byte{1, 2, 3})
		fmt.Fprintf(w, `{"blob":%s}`, blobJSON)
	})

	c := testClient(t, mux)
	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	blob, err := c.UploadBlob(context.Background(), "image/jpeg", []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(blob.Raw), blobJSON)
}

func TestUploadBlobRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"InternalServerError"}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"blob":{"$type":"blob"}}`)
	})

	c := testClient(t, mux)
	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := c.UploadBlob(context.Background(), "image/jpeg", []byte{1}); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, calls.Load(), int64(3))
}

func TestUploadBlobExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"InternalServerError"}`, http.StatusInternalServerError)
	})

	c := testClient(t, mux)
	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := c.UploadBlob(context.Background(), "image/jpeg", []byte{1})
	if err == nil {
		t.Fatal("UploadBlob succeeded, want error")
	}
	testutil.AssertEqual(t, apperr.CodeOf(err), apperr.CodeUpload)
	testutil.AssertEqual(t, calls.Load(), int64(uploadRetryLimit))
}

func TestPost(t *testing.T) {
	t.Parallel()

	var record map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST bsky.social/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		req := testutil.UnmarshalJSON[map[string]any](t, body)
		testutil.AssertEqual(t, req["repo"], testDID)
		testutil.AssertEqual(t, req["collection"], "app.bsky.feed.post")
		record = req["record"].(map[string]any)
		fmt.Fprint(w, `{"uri":"at://did:plc:test123/app.bsky.feed.post/abc","cid":"bafyrec"}`)
	})

	c := testClient(t, mux)
	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	const text = "example.com/post\nExample Post"
	facet, ok := LinkFacet(text, "example.com/post", "https://example.com/post")
	testutil.AssertEqual(t, ok, true)

	err := c.Post(context.Background(), text, []Facet{facet}, &Embed{
		URI:   "https://example.com/post",
		Title: "Example Post",
	})
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, record["$type"], "app.bsky.feed.post")
	testutil.AssertEqual(t, record["text"], text)
	testutil.AssertEqual(t, record["langs"], []any{"ja"})

	embed := record["embed"].(map[string]any)
	testutil.AssertEqual(t, embed["$type"], "app.bsky.embed.external")
	external := embed["external"].(map[string]any)
	testutil.AssertEqual(t, external["uri"], "https://example.com/post")

	facets := record["facets"].([]any)
	testutil.AssertEqual(t, len(facets), 1)
	index := facets[0].(map[string]any)["index"].(map[string]any)
	testutil.AssertEqual(t, index["byteStart"], float64(0))
	testutil.AssertEqual(t, index["byteEnd"], float64(len("example.com/post")))
}
