// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/bluesky"
	"go.osokin.dev/notifier/internal/cli"
	"go.osokin.dev/notifier/internal/content"
	"go.osokin.dev/notifier/internal/feed"
	"go.osokin.dev/notifier/internal/filelock"
	"go.osokin.dev/notifier/internal/format"
	"go.osokin.dev/notifier/internal/gemini"
	"go.osokin.dev/notifier/internal/image"
	"go.osokin.dev/notifier/internal/ogp"
	"go.osokin.dev/notifier/internal/request"
	"go.osokin.dev/notifier/internal/summary"
	"go.osokin.dev/notifier/internal/webhook"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxPosts = 3
	maxFeedItems    = 20
)

func main() { cli.Main(new(bot)) }

func (b *bot) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&b.dry, "dry", false, "Enable dry-run mode: log actions, but don't post or save state.")
}

type bot struct {
	init sync.Once

	// configuration
	feedURL     string
	blueskyID   string
	blueskyPass string
	geminiKey   string
	geminiModel string
	webhookURL  string
	linkBase    string
	titleFilter string
	rulesFile   string
	stateDir    string
	maxPosts    int
	dry         bool
	// now acts as time.Now, but can be mocked for testing.
	now func() time.Time

	// initialized by doInit
	httpc     *http.Client
	logf      func(string, ...any)
	scrubber  *strings.Replacer
	slog      *slog.Logger
	slogLevel *slog.LevelVar

	fetcher   *feed.Fetcher
	cursor    *feed.Cursor
	meta      *ogp.Fetcher
	extractor *content.Extractor
	gen       *summary.Generator
	images    *image.Processor
	bsky      *bluesky.Client
	hook      *webhook.Client
}

func (b *bot) Run(ctx context.Context, env *cli.Env) error {
	// Load configuration from environment variables.
	b.feedURL = cmp.Or(b.feedURL, env.Getenv("RSS_URL"))
	b.blueskyID = cmp.Or(b.blueskyID, env.Getenv("BLUESKY_IDENTIFIER"))
	b.blueskyPass = cmp.Or(b.blueskyPass, env.Getenv("BLUESKY_PASSWORD"))
	b.geminiKey = cmp.Or(b.geminiKey, env.Getenv("GOOGLE_AI_API_KEY"))
	b.geminiModel = cmp.Or(b.geminiModel, env.Getenv("GEMINI_MODEL"), gemini.DefaultModel)
	b.webhookURL = cmp.Or(b.webhookURL, env.Getenv("WEBHOOK_URL"))
	b.linkBase = cmp.Or(b.linkBase, env.Getenv("LINK_BASE_URL"), "https://github.com")
	b.titleFilter = cmp.Or(b.titleFilter, env.Getenv("TITLE_FILTER"), "starred")
	b.rulesFile = cmp.Or(b.rulesFile, env.Getenv("RULES_FILE"))
	b.maxPosts = cmp.Or(b.maxPosts, parseInt(env.Getenv("MAX_POST_COUNT")), defaultMaxPosts)

	if err := checkRequired(map[string]string{
		"RSS_URL":            b.feedURL,
		"BLUESKY_IDENTIFIER": b.blueskyID,
		"BLUESKY_PASSWORD":   b.blueskyPass,
		"GOOGLE_AI_API_KEY":  b.geminiKey,
	}); err != nil {
		return err
	}

	var err error
	b.stateDir, err = stateDir(env, b.stateDir)
	if err != nil {
		return err
	}

	var initErr error
	b.init.Do(func() { initErr = b.doInit(env) })
	if initErr != nil {
		return initErr
	}

	if b.dry {
		b.slogLevel.Set(slog.LevelDebug)
	}

	lock, err := filelock.Acquire(filepath.Join(b.stateDir, "run.lock"), strconv.Itoa(os.Getpid()))
	if err != nil {
		return err
	}
	defer lock.Release()

	return b.run(ctx)
}

func (b *bot) doInit(env *cli.Env) error {
	b.logf = log.New(env.Stderr, "", 0).Printf
	if b.now == nil {
		b.now = time.Now
	}
	if b.httpc == nil {
		b.httpc = request.DefaultClient
	}

	b.scrubber = strings.NewReplacer(
		b.blueskyPass, "[EXPUNGED]",
		b.geminiKey, "[EXPUNGED]",
	)

	b.slogLevel = new(slog.LevelVar)
	if b.slog == nil {
		b.slog = slog.New(slog.NewTextHandler(env.Stderr, &slog.HandlerOptions{Level: b.slogLevel}))
	}

	rules, err := feed.LoadRules(b.rulesFile, b.slog)
	if err != nil {
		return apperr.New(apperr.CodeConfig, "starnotify", err)
	}

	b.fetcher = &feed.Fetcher{HTTPClient: b.httpc, Slog: b.slog, Rules: rules}
	b.cursor = &feed.Cursor{Path: filepath.Join(b.stateDir, "timestamp")}
	b.meta = &ogp.Fetcher{HTTPClient: b.httpc, Slog: b.slog}
	b.extractor = &content.Extractor{HTTPClient: b.httpc, Slog: b.slog}
	b.gen = &summary.Generator{
		Client: &gemini.Client{
			APIKey:     b.geminiKey,
			Model:      b.geminiModel,
			HTTPClient: b.httpc,
			Scrubber:   b.scrubber,
		},
		Slog: b.slog,
	}
	b.images = &image.Processor{HTTPClient: b.httpc, Slog: b.slog}
	b.bsky = &bluesky.Client{
		Identifier: b.blueskyID,
		Password:   b.blueskyPass,
		HTTPClient: b.httpc,
		Scrubber:   b.scrubber,
		Slog:       b.slog,
	}
	b.hook = &webhook.Client{URL: b.webhookURL, HTTPClient: b.httpc, Scrubber: b.scrubber, Slog: b.slog}

	return nil
}

func (b *bot) run(ctx context.Context) error {
	since, err := b.cursor.Load()
	if err != nil {
		return err
	}
	if since.IsZero() {
		// First run: start from now, post nothing.
		b.logf("No cursor file found, initializing to current time.")
		if b.dry {
			return nil
		}
		return b.cursor.Save(b.now())
	}

	items, err := b.fetcher.Fetch(ctx, b.feedURL)
	if err != nil {
		return err
	}
	items = b.eligible(items, since)
	if len(items) == 0 {
		b.logf("No new feed items.")
		return nil
	}

	if err := b.bsky.Login(ctx); err != nil {
		return err
	}

	var posted int
	for _, item := range items {
		if posted >= b.maxPosts {
			b.slog.Info("max post count reached", "count", posted)
			break
		}
		if err := b.processItem(ctx, item); err != nil {
			return err
		}
		posted++

		if b.dry {
			continue
		}
		if err := b.cursor.Save(item.Published); err != nil {
			return err
		}
	}

	b.slog.Info("run finished", "posted", posted, "eligible", len(items))
	return nil
}

// eligible filters and bounds the batch: items newer than the cursor whose
// title matches the configured filter, oldest first.
func (b *bot) eligible(items []feed.Item, since time.Time) []feed.Item {
	var out []feed.Item
	for _, item := range feed.NewerThan(items, since) {
		if b.titleFilter != "" && !strings.Contains(item.Title, b.titleFilter) {
			continue
		}
		item.Link = resolveAgainst(b.linkBase, item.Link)
		out = append(out, item)
		if len(out) == maxFeedItems {
			break
		}
	}
	return out
}

func (b *bot) processItem(ctx context.Context, item feed.Item) error {
	b.slog.Info("processing item", "id", item.ID, "title", item.Title, "link", item.Link)

	// Metadata and article text are independent fetches.
	var (
		og          ogp.Data
		articleText string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		og = b.meta.Fetch(gctx, item.Link)
		return nil
	})
	g.Go(func() error {
		articleText = b.extractor.Extract(gctx, item.Link)
		return nil
	})
	g.Wait()

	var sum string
	if articleText != "" {
		sum = summary.TruncateGraphemes(b.gen.Generate(ctx, articleText), format.SummaryMax)
	}

	title := cmp.Or(og.Title, item.Title)
	text := format.SummaryPost(sum, title, item.Link)
	facets := bluesky.DetectLinkFacets(text)

	var thumb *bluesky.Blob
	if img, ok := og.FirstImage(); ok && !b.dry {
		if asset := b.images.Process(ctx, resolveAgainst(item.Link, img.URL), item.Published.UnixMilli()); asset != nil {
			uploaded, err := b.bsky.UploadBlob(ctx, asset.MIME, asset.Data)
			if err != nil {
				b.slog.Warn("image upload failed, posting without a thumbnail", "error", err)
			} else {
				thumb = uploaded
			}
		}
	}

	if b.dry {
		b.logf("Would post:\n%s", text)
		return nil
	}

	embed := &bluesky.Embed{
		URI:         item.Link,
		Title:       title,
		Description: cmp.Or(og.Description, item.Description),
		Thumb:       thumb,
	}

	// The two publish channels don't depend on each other.
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.bsky.Post(gctx, text, facets, embed)
	})
	g.Go(func() error {
		return b.hook.Send(gctx, format.WebhookMessage(sum, title, item.Link))
	})
	return g.Wait()
}

func resolveAgainst(base, link string) string {
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(u).String()
}

func checkRequired(vars map[string]string) error {
	var missing []string
	for name, value := range vars {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return apperr.Newf(apperr.CodeConfig, "starnotify",
		"missing required environment variables: %s", strings.Join(missing, ", "))
}

func stateDir(env *cli.Env, dir string) (string, error) {
	dir = cmp.Or(dir, env.Getenv("STATE_DIRECTORY"))
	if dir == "" {
		xdgStateHome := env.Getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			xdgStateHome = filepath.Join(home, ".local", "state")
		}
		dir = filepath.Join(xdgStateHome, "starnotify")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err == nil {
		return i
	}
	return 0
}
