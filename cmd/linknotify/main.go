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
	"slices"
	"strings"
	"sync"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/bluesky"
	"go.osokin.dev/notifier/internal/cli"
	"go.osokin.dev/notifier/internal/content"
	"go.osokin.dev/notifier/internal/format"
	"go.osokin.dev/notifier/internal/gemini"
	"go.osokin.dev/notifier/internal/image"
	"go.osokin.dev/notifier/internal/ogp"
	"go.osokin.dev/notifier/internal/request"
	"go.osokin.dev/notifier/internal/summary"
	"go.osokin.dev/notifier/internal/webhook"

	"golang.org/x/sync/errgroup"
)

func main() { cli.Main(new(bot)) }

func (b *bot) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&b.dry, "dry", false, "Enable dry-run mode: log actions, but don't post.")
}

type bot struct {
	init sync.Once

	// configuration
	link        string
	blueskyID   string
	blueskyPass string
	geminiKey   string
	geminiModel string
	webhookURL  string
	dry         bool
	// now acts as time.Now, but can be mocked for testing.
	now func() time.Time

	// initialized by doInit
	httpc     *http.Client
	logf      func(string, ...any)
	scrubber  *strings.Replacer
	slog      *slog.Logger
	slogLevel *slog.LevelVar

	meta      *ogp.Fetcher
	extractor *content.Extractor
	gen       *summary.Generator
	images    *image.Processor
	bsky      *bluesky.Client
	hook      *webhook.Client
}

func (b *bot) Run(ctx context.Context, env *cli.Env) error {
	// Load configuration from environment variables.
	b.link = cmp.Or(b.link, strings.TrimSpace(env.Getenv("LINK")))
	b.blueskyID = cmp.Or(b.blueskyID, env.Getenv("BLUESKY_IDENTIFIER"))
	b.blueskyPass = cmp.Or(b.blueskyPass, env.Getenv("BLUESKY_PASSWORD"))
	b.geminiKey = cmp.Or(b.geminiKey, env.Getenv("GOOGLE_AI_API_KEY"))
	b.geminiModel = cmp.Or(b.geminiModel, env.Getenv("GEMINI_MODEL"), gemini.DefaultModel)
	b.webhookURL = cmp.Or(b.webhookURL, env.Getenv("WEBHOOK_URL"))

	if b.link == "" {
		// Nothing to post is a successful run: the triggering automation
		// doesn't always have a link to hand over.
		env.Logf("No link provided, exiting.")
		return nil
	}

	if err := checkRequired(map[string]string{
		"BLUESKY_IDENTIFIER": b.blueskyID,
		"BLUESKY_PASSWORD":   b.blueskyPass,
		"GOOGLE_AI_API_KEY":  b.geminiKey,
	}); err != nil {
		return err
	}

	b.init.Do(func() { b.doInit(env) })

	if b.dry {
		b.slogLevel.Set(slog.LevelDebug)
	}

	return b.run(ctx)
}

func (b *bot) doInit(env *cli.Env) {
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
}

func (b *bot) run(ctx context.Context) error {
	b.slog.Info("processing link", "link", b.link)

	// Metadata and article text are independent fetches. PDF pages have no
	// Open Graph tags, so the title comes out of the document itself and
	// there is no article text to extract.
	var (
		og          ogp.Data
		articleText string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		og = b.meta.Fetch(gctx, b.link)
		return nil
	})
	if !strings.HasSuffix(b.link, ".pdf") {
		g.Go(func() error {
			articleText = b.extractor.Extract(gctx, b.link)
			return nil
		})
	}
	g.Wait()

	var sum string
	if articleText != "" {
		sum = summary.TruncateGraphemes(b.gen.Generate(ctx, articleText), format.SummaryMax)
	}
	if sum == "" {
		// Without a summary there is nothing worth posting.
		b.logf("No summary generated, exiting.")
		return nil
	}

	if err := b.bsky.Login(ctx); err != nil {
		return err
	}

	title := og.Title
	text := format.SummaryPost(sum, title, b.link)
	facets := bluesky.DetectLinkFacets(text)

	var thumb *bluesky.Blob
	if img, ok := og.FirstImage(); ok && !b.dry {
		if asset := b.images.Process(ctx, resolveAgainst(b.link, img.URL), b.now().UnixMilli()); asset != nil {
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
		URI:         b.link,
		Title:       title,
		Description: og.Description,
		Thumb:       thumb,
	}

	// The two publish channels don't depend on each other.
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.bsky.Post(gctx, text, facets, embed)
	})
	g.Go(func() error {
		return b.hook.Send(gctx, format.WebhookMessage(sum, title, b.link))
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
	return apperr.Newf(apperr.CodeConfig, "linknotify",
		"missing required environment variables: %s", strings.Join(missing, ", "))
}
