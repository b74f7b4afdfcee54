package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/models"
)

// loadMoreProbe clicks a visible load-more control if one exists.
// Returns true when a click happened.
const loadMoreProbe = `(() => {
	const candidates = Array.from(document.querySelectorAll('[class*="loadMore"], [class*="showMore"], button'));
	for (const el of candidates) {
		const text = (el.textContent || "").toLowerCase();
		if (text.includes("load more") || text.includes("show more")) {
			el.click();
			return true;
		}
	}
	return false;
})()`

const scrollToBottom = `window.scrollTo(0, document.body.scrollHeight); true`

// ScrollDriver repeatedly extracts the visible companies, scrolls to
// trigger the next batch, and measures progress. It terminates on one of
// three conditions: the company cap, the page limit, or a stall streak
// exhausting the budget.
type ScrollDriver struct {
	extractor   *Extractor
	companyCap  int
	pageLimit   int
	stallBudget int
	settleDelay time.Duration
	logger      arbor.ILogger
}

// NewScrollDriver builds a driver. companyCap and pageLimit of zero mean
// unbounded; stallBudget must be at least one.
func NewScrollDriver(extractor *Extractor, companyCap, pageLimit, stallBudget int, settleDelay time.Duration, logger arbor.ILogger) *ScrollDriver {
	if stallBudget < 1 {
		stallBudget = 1
	}
	return &ScrollDriver{
		extractor:   extractor,
		companyCap:  companyCap,
		pageLimit:   pageLimit,
		stallBudget: stallBudget,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

// Run drives the extract/scroll cycle until a terminal condition and
// returns the accumulated companies. Accumulated work is preserved on
// every exit path, including context cancellation.
func (d *ScrollDriver) Run(ctx context.Context, page Page) (*Result, error) {
	var accumulated []models.RawCompany
	stallsLeft := d.stallBudget
	pages := 0
	state := stateExtracting

	for {
		if err := ctx.Err(); err != nil {
			return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, err
		}

		switch state {
		case stateExtracting:
			batch, err := d.extractor.ExtractBatch(ctx, page)
			if err != nil {
				return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, fmt.Errorf("extracting batch %d: %w", pages+1, err)
			}
			accumulated = append(accumulated, batch...)

			d.logger.Info().
				Int("batch", pages+1).
				Int("batch_new", len(batch)).
				Int("total", len(accumulated)).
				Msg("Batch extracted")

			if d.companyCap > 0 && len(accumulated) >= d.companyCap {
				accumulated = accumulated[:d.companyCap]
				d.logger.Info().Int("cap", d.companyCap).Msg("Company cap reached")
				return &Result{Companies: accumulated, Outcome: OutcomeCapReached, Pages: pages + 1}, nil
			}

			pages++
			if d.pageLimit > 0 && pages >= d.pageLimit {
				d.logger.Info().Int("page_limit", d.pageLimit).Msg("Page limit reached")
				return &Result{Companies: accumulated, Outcome: OutcomePageLimit, Pages: pages}, nil
			}

			state = stateScrolling

		case stateScrolling:
			before, err := d.countCompanies(ctx, page)
			if err != nil {
				return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, err
			}

			if err := page.Evaluate(ctx, scrollToBottom, nil); err != nil {
				return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, fmt.Errorf("scrolling: %w", err)
			}
			d.settle(ctx)

			var clicked bool
			if err := page.Evaluate(ctx, loadMoreProbe, &clicked); err == nil && clicked {
				d.logger.Debug().Msg("Clicked load-more control")
				d.settle(ctx)
			}

			after, err := d.countCompanies(ctx, page)
			if err != nil {
				return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, err
			}

			if after > before {
				state = stateProgressed
			} else {
				state = stateStalled
			}

		case stateProgressed:
			stallsLeft = d.stallBudget
			state = stateExtracting

		case stateStalled:
			stallsLeft--
			d.logger.Debug().Int("stalls_left", stallsLeft).Msg("Scroll produced no new content")
			if stallsLeft <= 0 {
				d.logger.Info().Int("total", len(accumulated)).Msg("No more content, stall budget exhausted")
				return &Result{Companies: accumulated, Outcome: OutcomeNoMoreContent, Pages: pages}, nil
			}
			d.settle(ctx)
			state = stateScrolling
		}
	}
}

func (d *ScrollDriver) countCompanies(ctx context.Context, page Page) (int, error) {
	var lastErr error
	for _, sel := range companySelectors {
		n, err := page.Count(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		if n > 0 {
			return n, nil
		}
	}
	if lastErr != nil {
		return 0, fmt.Errorf("counting companies: %w", lastErr)
	}
	return 0, nil
}

func (d *ScrollDriver) settle(ctx context.Context) {
	if d.settleDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d.settleDelay):
	}
}
