// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package webhook posts notification text to a generic webhook endpoint.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/request"
)

// Client posts to a webhook URL. An empty URL disables the channel: Send
// becomes a no-op.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Scrubber   *strings.Replacer
	Slog       *slog.Logger
}

func (c *Client) slog() *slog.Logger {
	if c.Slog != nil {
		return c.Slog
	}
	return slog.Default()
}

// Send delivers text as the webhook payload's value1 field.
func (c *Client) Send(ctx context.Context, text string) error {
	if c.URL == "" {
		c.slog().Debug("webhook URL not configured, skipping")
		return nil
	}
	_, err := request.Make[request.IgnoreResponse](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        c.URL,
		Body:       map[string]string{"value1": text},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return apperr.New(apperr.CodeNetwork, "webhook.Send", err)
	}
	return nil
}
