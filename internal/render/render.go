// Package render loads a URL in a headless browser and captures the
// rendered document, for pages that are not already open in a tab.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
)

// Config controls how pages are rendered.
type Config struct {
	// RemoteURL, when set, renders in an existing browser's DevTools endpoint
	// instead of starting a local headless one.
	RemoteURL string
	Timeout   time.Duration
	// WaitSelector is awaited before capture; empty means the body.
	WaitSelector string
}

// Renderer opens a fresh tab per call and closes it afterwards.
type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.WaitSelector) == "" {
		cfg.WaitSelector = "body"
	}
	return &Renderer{cfg: cfg}
}

// Render navigates to pageURL and returns the final location and markup.
func (r *Renderer) Render(ctx context.Context, pageURL string) (cdpcontrol.PageCapture, error) {
	pageURL = strings.TrimSpace(pageURL)
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return cdpcontrol.PageCapture{}, cdpcontrol.NewError(cdpcontrol.CodeValidation, "url must be http(s): "+pageURL, nil)
	}

	allocCtx, allocCancel := r.allocator(ctx)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer runCancel()

	var out cdpcontrol.PageCapture
	start := time.Now()
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(r.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Location(&out.URL),
		chromedp.Title(&out.Title),
		chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery),
	)
	if err != nil {
		slog.Warn("render failed", "url", pageURL, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		if runCtx.Err() == context.DeadlineExceeded {
			return cdpcontrol.PageCapture{}, cdpcontrol.NewError(cdpcontrol.CodeEvalTimeout, "render timed out", err)
		}
		return cdpcontrol.PageCapture{}, cdpcontrol.NewError(cdpcontrol.CodeRenderFailure, fmt.Sprintf("render %s failed", pageURL), err)
	}

	slog.Info("render ok", "url", pageURL, "final_url", out.URL, "bytes", len(out.HTML), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (r *Renderer) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, r.cfg.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}
