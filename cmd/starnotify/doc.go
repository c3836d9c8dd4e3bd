// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Starnotify watches an RSS feed of starred repositories and posts new entries
to Bluesky, each with an AI-generated two-sentence summary, an Open Graph
link card and an optional webhook notification.

# Usage

	$ starnotify [flags...]

# Environment Variables

The starnotify program relies on the following environment variables:

  - RSS_URL: URL of the feed to watch. Required.
  - BLUESKY_IDENTIFIER: Bluesky handle or DID to post as. Required.
  - BLUESKY_PASSWORD: Bluesky app password. Required.
  - GOOGLE_AI_API_KEY: API key for the Gemini API. Required.
  - GEMINI_MODEL: Gemini model to use. Defaults to "gemini-2.0-flash-lite".
  - WEBHOOK_URL: webhook endpoint that receives each post as {"value1": text}.
    Optional; the webhook channel is skipped when unset.
  - LINK_BASE_URL: base URL against which relative item links are resolved.
    Defaults to "https://github.com".
  - TITLE_FILTER: substring an item title must contain to be posted.
    Defaults to "starred".
  - MAX_POST_COUNT: maximum number of items posted per run. Defaults to 3.
  - RULES_FILE: path to a Starlark file with keep/block rules applied to
    each feed item. Optional.
  - STATE_DIRECTORY: directory holding the timestamp cursor and the run
    lock. Defaults to $XDG_STATE_HOME/starnotify.

The cursor file records the publication instant of the last item whose
publishes succeeded, as epoch milliseconds. On the first run, when no cursor
file exists yet, starnotify saves the current time and posts nothing.
*/
package main

import (
	_ "embed"

	"go.osokin.dev/notifier/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
