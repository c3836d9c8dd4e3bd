// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package image fetches preview images and re-encodes them under a byte
// budget, lowering quality step by step until the encoding fits.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.osokin.dev/notifier/internal/apperr"
	"go.osokin.dev/notifier/internal/version"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	maxWidth  = 2000
	maxHeight = 2000

	// DefaultMaxBytes is the byte budget for an encoded image, matching the
	// publish channel's blob limit.
	DefaultMaxBytes = 976_560

	fetchRetryLimit  = 5
	fetchRetryDelay  = time.Second
	encodeRetryLimit = 15
	qualityStart     = 100
	qualityStep      = 2
)

// Asset is a re-encoded preview image ready for upload.
type Asset struct {
	MIME string
	Data []byte
}

// Processor fetches and re-encodes images.
type Processor struct {
	HTTPClient *http.Client
	// MaxBytes overrides DefaultMaxBytes when positive.
	MaxBytes int
	Slog     *slog.Logger
}

func (p *Processor) maxBytes() int {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	return DefaultMaxBytes
}

func (p *Processor) slog() *slog.Logger {
	if p.Slog != nil {
		return p.Slog
	}
	return slog.Default()
}

func (p *Processor) httpc() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

// Process fetches the image at srcURL and re-encodes it under the byte
// budget. Any failure anywhere degrades to a nil asset; the caller publishes
// without an image. The nonce keys scratch storage so concurrent bots don't
// collide.
func (p *Processor) Process(ctx context.Context, srcURL string, nonce int64) (asset *Asset) {
	defer func() {
		if r := recover(); r != nil {
			p.slog().Warn("image processing panicked", "url", srcURL, "panic", r)
			asset = nil
		}
	}()

	data, err := p.fetch(ctx, srcURL)
	if err != nil {
		p.slog().Warn("image fetch failed", "url", srcURL, "error", err)
		return nil
	}

	asset, err = p.reencode(data, nonce)
	if err != nil {
		p.slog().Warn("image re-encoding failed", "url", srcURL, "error", err)
		return nil
	}
	return asset
}

// fetch downloads the image with a bounded retry count. Every attempt must
// return 200 and an image content type.
func (p *Processor) fetch(ctx context.Context, srcURL string) ([]byte, error) {
	u, err := url.Parse(srcURL)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "image.fetch", err)
	}
	// Feeds occasionally carry preview URLs pointing into private networks.
	if ip := net.ParseIP(u.Hostname()); ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
		return nil, apperr.Newf(apperr.CodeNetwork, "image.fetch", "refusing private address %q", u.Hostname())
	}

	var lastErr error
	for retry := range fetchRetryLimit {
		if retry > 0 {
			p.slog().Warn("retrying image fetch",
				"url", srcURL, "retry", retry, "retry_limit", fetchRetryLimit)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
		}

		data, err := p.fetchOnce(ctx, srcURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *Processor) fetchOnce(ctx context.Context, srcURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "image.fetch", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := p.httpc().Do(req)
	if err != nil {
		return nil, apperr.New(apperr.CodeNetwork, "image.fetch", err)
	}
	defer res.Body.Close()

	ct := res.Header.Get("Content-Type")
	if res.StatusCode != http.StatusOK || !isImageContentType(ct) {
		io.Copy(io.Discard, res.Body)
		return nil, apperr.Newf(apperr.CodeNetwork, "image.fetch",
			"want an image, got status %d, content type %q", res.StatusCode, ct)
	}

	return io.ReadAll(res.Body)
}

func isImageContentType(ct string) bool {
	mt, _, _ := splitContentType(ct)
	return len(mt) > 6 && mt[:6] == "image/"
}

func splitContentType(ct string) (string, string, bool) {
	for i := range len(ct) {
		if ct[i] == ';' {
			return ct[:i], ct[i+1:], true
		}
	}
	return ct, "", false
}

// reencode resizes the image to fit the maximum dimensions and encodes it as
// JPEG, lowering quality until the byte budget is met or the attempt limit is
// reached. The last attempt wins; the budget is best-effort.
func (p *Processor) reencode(data []byte, nonce int64) (*Asset, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.New(apperr.CodeParse, "image.decode", err)
	}

	img := fit(src, maxWidth, maxHeight)

	// Scratch file mirrors what would be uploaded; removed on every exit path.
	scratch := filepath.Join(os.TempDir(), fmt.Sprintf("notifier-%d.jpg", nonce))
	defer os.Remove(scratch)

	var encoded []byte
	for attempt := range encodeRetryLimit {
		quality := qualityStart - attempt*qualityStep

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, apperr.New(apperr.CodeUpload, "image.encode", err)
		}
		encoded = buf.Bytes()

		if err := os.WriteFile(scratch, encoded, 0o600); err != nil {
			return nil, err
		}

		p.slog().Debug("re-encoded image",
			"format", format, "quality", quality, "bytes", len(encoded), "budget", p.maxBytes())

		if len(encoded) <= p.maxBytes() {
			break
		}
		p.slog().Warn("encoded image over byte budget, lowering quality",
			"bytes", len(encoded), "budget", p.maxBytes(), "attempt", attempt+1)
	}

	return &Asset{MIME: "image/jpeg", Data: encoded}, nil
}

// fit scales src down to fit within w×h, preserving aspect ratio. Images
// already within bounds are returned untouched.
func fit(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw <= w && sh <= h {
		return src
	}

	scale := min(float64(w)/float64(sw), float64(h)/float64(sh))
	dw, dh := max(int(float64(sw)*scale), 1), max(int(float64(sh)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
