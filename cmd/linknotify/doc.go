// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Linknotify posts a single URL to Bluesky with an AI-generated two-sentence
summary, an Open Graph link card and an optional webhook notification. It is
meant to be triggered by automation that supplies the URL via the LINK
environment variable; with no URL it exits successfully without posting.

# Usage

	$ linknotify [flags...]

# Environment Variables

The linknotify program relies on the following environment variables:

  - LINK: the URL to post. When empty, linknotify exits without doing
    anything.
  - BLUESKY_IDENTIFIER: Bluesky handle or DID to post as. Required.
  - BLUESKY_PASSWORD: Bluesky app password. Required.
  - GOOGLE_AI_API_KEY: API key for the Gemini API. Required.
  - GEMINI_MODEL: Gemini model to use. Defaults to "gemini-2.0-flash-lite".
  - WEBHOOK_URL: webhook endpoint that receives the post as {"value1": text}.
    Optional; the webhook channel is skipped when unset.

For PDF links the page title is taken from the first text block of the
document instead of Open Graph tags. When no summary can be generated,
linknotify exits without posting.
*/
package main

import (
	_ "embed"

	"go.osokin.dev/notifier/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
