// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Rssnotify watches an RSS feed and posts new entries to Bluesky with an Open
Graph link card, plus an optional webhook notification. Entries that can't
be posted in one run (the per-run post cap) are queued and posted by later
runs.

# Usage

	$ rssnotify [flags...]

# Environment Variables

The rssnotify program relies on the following environment variables:

  - RSS_URL: URL of the feed to watch. Required.
  - BLUESKY_IDENTIFIER: Bluesky handle or DID to post as. Required.
  - BLUESKY_PASSWORD: Bluesky app password. Required.
  - WEBHOOK_URL: webhook endpoint that receives each post as {"value1": text}.
    Optional; the webhook channel is skipped when unset.
  - MAX_POST_COUNT: maximum number of items posted per run. Defaults to 3.
  - RULES_FILE: path to a Starlark file with keep/block rules applied to
    each feed item. Optional.
  - STATE_DIRECTORY: directory holding the timestamp cursor, the unposted
    item queue and the run lock. Defaults to $XDG_STATE_HOME/rssnotify.

Rssnotify only posts between 01:00 and 15:00 UTC; outside that window a run
exits without fetching. New items are merged into the queue by item ID, so
a run cut short never loses or duplicates entries.
*/
package main

import (
	_ "embed"

	"go.osokin.dev/notifier/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
