// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bluesky is a minimal client for the parts of the Bluesky XRPC API
// the bots need: session creation, blob upload and posting.
package bluesky

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/request"
)

const (
	// DefaultService is the public Bluesky PDS.
	DefaultService = "https://bsky.social"

	uploadRetryLimit     = 5
	uploadAttemptTimeout = 10 * time.Second
	uploadRetryDelay     = time.Second
)

// PostLangs marks every post's language.
var PostLangs = []string{"ja"}

// Client talks to a Bluesky PDS. Call [Client.Login] before any other
// method.
type Client struct {
	Service    string // PDS base URL; DefaultService if empty
	Identifier string // handle or DID
	Password   string // app password

	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	Slog       *slog.Logger

	accessJWT string
	did       string
}

func (c *Client) slog() *slog.Logger {
	if c.Slog != nil {
		return c.Slog
	}
	return slog.Default()
}

func (c *Client) service() string {
	if c.Service != "" {
		return strings.TrimSuffix(c.Service, "/")
	}
	return DefaultService
}

func (c *Client) xrpc(method string) string {
	return c.service() + "/xrpc/" + method
}

type session struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
}

// Login creates a session with the PDS. Failure here is fatal for the run:
// nothing can be posted without a session.
func (c *Client) Login(ctx context.Context) error {
	sess, err := request.Make[session](ctx, request.Params{
		Method: http.MethodPost,
		URL:    c.xrpc("com.atproto.server.createSession"),
		Body: map[string]string{
			"identifier": c.Identifier,
			"password":   c.Password,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return apperr.New(apperr.CodeAuth, "bluesky.Login", err)
	}
	c.accessJWT = sess.AccessJWT
	c.did = sess.DID
	return nil
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.accessJWT,
	}
}

// Blob is an uploaded blob reference, passed verbatim into a post embed.
type Blob struct {
	Raw json.RawMessage
}

type uploadBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

// UploadBlob uploads image bytes and returns the blob reference to embed.
// Each attempt has its own timeout; transient failures are retried a fixed
// number of times.
func (c *Client) UploadBlob(ctx context.Context, mime string, data []byte) (*Blob, error) {
	headers := c.authHeaders()
	headers["Content-Type"] = mime

	var lastErr error
	for attempt := range uploadRetryLimit {
		if attempt > 0 {
			c.slog().Warn("retrying blob upload", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, apperr.New(apperr.CodeUpload, "bluesky.UploadBlob", ctx.Err())
			case <-time.After(uploadRetryDelay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, uploadAttemptTimeout)
		res, err := request.Make[uploadBlobResponse](attemptCtx, request.Params{
			Method:     http.MethodPost,
			URL:        c.xrpc("com.atproto.repo.uploadBlob"),
			Headers:    headers,
			RawBody:    data,
			HTTPClient: c.HTTPClient,
			Scrubber:   c.Scrubber,
		})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return &Blob{Raw: res.Blob}, nil
	}
	return nil, apperr.New(apperr.CodeUpload, "bluesky.UploadBlob", lastErr)
}

// Embed is the external-link card attached to a post.
type Embed struct {
	URI         string
	Title       string
	Description string
	Thumb       *Blob // optional
}

// Post publishes text to the authenticated account's feed. facets mark up
// byte ranges of text as tappable links; embed, if non-nil, attaches a link
// card.
func (c *Client) Post(ctx context.Context, text string, facets []Facet, embed *Embed) error {
	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"langs":     PostLangs,
	}
	if len(facets) > 0 {
		record["facets"] = facets
	}
	if embed != nil {
		external := map[string]any{
			"uri":         embed.URI,
			"title":       embed.Title,
			"description": embed.Description,
		}
		if embed.Thumb != nil {
			external["thumb"] = embed.Thumb.Raw
		}
		record["embed"] = map[string]any{
			"$type":    "app.bsky.embed.external",
			"external": external,
		}
	}

	_, err := request.Make[request.IgnoreResponse](ctx, request.Params{
		Method:  http.MethodPost,
		URL:     c.xrpc("com.atproto.repo.createRecord"),
		Headers: c.authHeaders(),
		Body: map[string]any{
			"repo":       c.did,
			"collection": "app.bsky.feed.post",
			"record":     record,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return apperr.New(apperr.CodeNetwork, "bluesky.Post", err)
	}
	return nil
}
