package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/proxy"
)

// Orchestrator owns the browser session lifecycle: proxy attachment,
// navigation, the batch filter, and the scroll/extract loop. A failed
// session is torn down completely and retried with a fresh browser and
// a fresh proxy, up to the configured attempt budget.
type Orchestrator struct {
	config  *common.Config
	proxies *proxy.Manager
	policy  RetryPolicy
	logger  arbor.ILogger
}

// NewOrchestrator builds a session orchestrator. proxies may be nil when
// proxy routing is disabled.
func NewOrchestrator(cfg *common.Config, proxies *proxy.Manager, logger arbor.ILogger) *Orchestrator {
	policy := DefaultSessionPolicy()
	if cfg.Scraper.MaxSessionAttempts > 0 {
		policy.MaxAttempts = cfg.Scraper.MaxSessionAttempts
	}
	return &Orchestrator{
		config:  cfg,
		proxies: proxies,
		policy:  policy,
		logger:  logger,
	}
}

// Run executes the scrape: it attempts full browser sessions until one
// succeeds or the attempt budget is exhausted, and returns the
// accumulated companies from the winning session.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	var result *Result

	err := o.policy.Execute(ctx, o.logger, "browser session", func() error {
		r, err := o.runSession(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Int("companies", len(result.Companies)).
		Int("pages", result.Pages).
		Str("outcome", string(result.Outcome)).
		Msg("Scrape session complete")

	return result, nil
}

// runSession performs one full attempt: browser launch, optional proxy
// probe, navigation, batch filter, and the scroll loop.
func (o *Orchestrator) runSession(ctx context.Context) (result *Result, err error) {
	browserProxy, err := o.selectProxy(ctx)
	if err != nil {
		return nil, err
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.config.Scraper.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(proxy.RandomUserAgent()),
	)
	if browserProxy != nil {
		allocatorOpts = append(allocatorOpts, chromedp.ProxyServer(browserProxy.Server))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	if browserProxy != nil && browserProxy.Username != "" {
		if err := o.enableProxyAuth(browserCtx, browserProxy); err != nil {
			return nil, fmt.Errorf("enabling proxy auth: %w", err)
		}
	}

	page := NewChromedpPage(browserCtx, o.config.Scraper.NavigationTimeout)
	defer func() {
		if err != nil {
			o.captureFailure(page)
		}
	}()

	if browserProxy != nil && o.config.Scraper.ProbeURL != "" {
		if err := o.probe(ctx, page); err != nil {
			return nil, fmt.Errorf("proxy connectivity probe: %w", err)
		}
	}

	o.logger.Info().Str("url", o.config.Scraper.TargetURL).Msg("Navigating to company directory")
	if err := page.Navigate(ctx, o.config.Scraper.TargetURL); err != nil {
		return nil, fmt.Errorf("navigating to directory: %w", err)
	}

	if err := o.waitForResults(ctx, page); err != nil {
		return nil, err
	}

	o.ensureAllBatches(ctx, page)

	extractor := NewExtractor(o.config.Scraper.MinStructuralCount, o.logger)
	driver := NewScrollDriver(
		extractor,
		o.config.Scraper.CompanyCap,
		o.config.Scraper.PageLimit,
		o.config.Scraper.StallBudget,
		o.config.Scraper.SettleDelay,
		o.logger,
	)

	return driver.Run(ctx, page)
}

// selectProxy resolves the egress proxy for one session attempt. When
// proxy routing is enabled, an unavailable provider, an empty pool, or
// a malformed entry fails the attempt: scraping direct happens only
// when routing is disabled outright.
func (o *Orchestrator) selectProxy(ctx context.Context) (*proxy.BrowserConfig, error) {
	if !o.config.Proxy.Enabled || o.proxies == nil {
		return nil, nil
	}

	pool, err := o.proxies.Fetch(ctx, o.config.Proxy.ProviderURL, o.config.Proxy.APIKey)
	if err != nil {
		return nil, fmt.Errorf("fetching proxy pool: %w", err)
	}

	selected, err := proxy.SelectRandom(pool)
	if err != nil {
		return nil, fmt.Errorf("selecting proxy: %w", err)
	}

	browserProxy, err := proxy.ToBrowserConfig(selected)
	if err != nil {
		return nil, fmt.Errorf("selecting proxy: %w", err)
	}

	o.logger.Info().Str("proxy", proxy.Describe(selected)).Msg("Routing session through proxy")
	return &browserProxy, nil
}

// enableProxyAuth answers the browser's HTTP auth challenges with the
// proxy credentials over the Fetch domain.
func (o *Orchestrator) enableProxyAuth(browserCtx context.Context, p *proxy.BrowserConfig) error {
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(browserCtx)
				execCtx := cdp.WithExecutor(browserCtx, c.Target)
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}
				if err := fetch.ContinueWithAuth(e.RequestID, resp).Do(execCtx); err != nil {
					o.logger.Warn().Err(err).Msg("Failed to answer proxy auth challenge")
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(browserCtx)
				execCtx := cdp.WithExecutor(browserCtx, c.Target)
				if err := fetch.ContinueRequest(e.RequestID).Do(execCtx); err != nil {
					o.logger.Debug().Err(err).Msg("Failed to continue paused request")
				}
			}()
		}
	})

	return chromedp.Run(browserCtx, fetch.Enable().WithHandleAuthRequests(true))
}

// captureFailure saves a full-page screenshot for post-mortem when a
// screenshot directory is configured. Runs before browser teardown.
func (o *Orchestrator) captureFailure(page Page) {
	dir := o.config.Scraper.ScreenshotDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to create screenshot directory")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("failure-%s.png", time.Now().Format("20060102-150405")))
	if err := page.Screenshot(context.Background(), path); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to capture failure screenshot")
		return
	}
	o.logger.Info().Str("path", path).Msg("Saved failure screenshot")
}

// probe verifies proxy connectivity against a known-good endpoint before
// committing to the expensive directory navigation. The navigation
// timeout bounds the attempt inside the page.
func (o *Orchestrator) probe(ctx context.Context, page Page) error {
	if err := page.Navigate(ctx, o.config.Scraper.ProbeURL); err != nil {
		return err
	}
	o.logger.Debug().Str("url", o.config.Scraper.ProbeURL).Msg("Proxy probe succeeded")
	return nil
}

func (o *Orchestrator) waitForResults(ctx context.Context, page Page) error {
	var lastErr error
	for _, sel := range resultsRegionSelectors {
		if err := page.WaitVisible(ctx, sel, o.config.Scraper.ResultsTimeout); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("results region never became visible: %w", lastErr)
}

// allBatchesScript finds the batch facet checkbox and checks it if not
// already checked. Idempotent: re-running never unchecks.
const allBatchesScript = `(() => {
	const xpath = '//h4[contains(text(),"Batch")]/following-sibling::label[contains(.,"All batches")]//input[@type="checkbox"]';
	const node = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!node) return "missing";
	if (node.checked) return "checked";
	node.click();
	return "clicked";
})()`

// ensureAllBatches widens the directory to every batch. Failures here
// are soft: the scrape proceeds against whatever filter is active.
func (o *Orchestrator) ensureAllBatches(ctx context.Context, page Page) {
	var state string
	if err := page.Evaluate(ctx, allBatchesScript, &state); err != nil {
		o.logger.Warn().Err(err).Msg("Batch filter toggle failed, scraping current view")
		return
	}

	switch state {
	case "missing":
		o.logger.Warn().Msg("Batch filter checkbox not found, scraping current view")
		return
	case "checked":
		o.logger.Debug().Msg("All batches already selected")
		return
	}

	o.logger.Info().Msg("Selected all batches filter")

	if err := page.Click(ctx, showResultsButton); err != nil {
		o.logger.Debug().Err(err).Msg("No show-results button after filter change")
	}

	o.settle(ctx)
	if err := o.waitForResults(ctx, page); err != nil {
		o.logger.Warn().Err(err).Msg("Results region slow to refresh after filter change")
	}
}

func (o *Orchestrator) settle(ctx context.Context) {
	if o.config.Scraper.SettleDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(o.config.Scraper.SettleDelay):
	}
}
