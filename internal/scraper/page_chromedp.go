package scraper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// chromedpPage adapts a chromedp browser context to the Page interface.
// Per-call timeouts are derived from the browser context so a dead
// browser never wedges the pipeline.
type chromedpPage struct {
	browserCtx context.Context
	navTimeout time.Duration
}

// NewChromedpPage wraps an active chromedp browser context. navTimeout
// bounds every navigation; a non-positive value falls back to a minute.
func NewChromedpPage(browserCtx context.Context, navTimeout time.Duration) Page {
	if navTimeout <= 0 {
		navTimeout = time.Minute
	}
	return &chromedpPage{browserCtx: browserCtx, navTimeout: navTimeout}
}

// selOpts picks the query mode: XPath selectors start with "//".
func selOpts(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.browserCtx, p.navTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.browserCtx, timeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.WaitVisible(sel, selOpts(sel))); err != nil {
		return fmt.Errorf("waiting for %q: %w", sel, err)
	}
	return nil
}

func (p *chromedpPage) OuterHTML(ctx context.Context, sel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var html string
	tctx, cancel := context.WithTimeout(p.browserCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.OuterHTML(sel, &html, selOpts(sel))); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromedpPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.browserCtx, 15*time.Second)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Evaluate(script, out))
}

func (p *chromedpPage) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.browserCtx, 5*time.Second)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Click(sel, selOpts(sel)))
}

func (p *chromedpPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf []byte
	tctx, cancel := context.WithTimeout(p.browserCtx, 15*time.Second)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (p *chromedpPage) Count(ctx context.Context, sel string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	script := fmt.Sprintf("document.querySelectorAll(%q).length", sel)
	tctx, cancel := context.WithTimeout(p.browserCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, err
	}
	return n, nil
}
