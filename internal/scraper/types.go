package scraper

import (
	"context"
	"time"

	"github.com/launchradar/launchradar/internal/models"
)

// Page abstracts the driven browser page. The chromedp-backed
// implementation lives in page_chromedp.go; tests substitute fakes.
type Page interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible node or the
	// timeout elapses.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// OuterHTML returns the outer HTML of the first node matching sel.
	OuterHTML(ctx context.Context, sel string) (string, error)

	// Evaluate runs the script in page context and unmarshals the result
	// into out (may be nil to discard).
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Click clicks the first node matching sel.
	Click(ctx context.Context, sel string) error

	// Count returns the number of nodes matching sel.
	Count(ctx context.Context, sel string) (int, error)

	// Screenshot captures the full page to a PNG file at path.
	Screenshot(ctx context.Context, path string) error
}

// Terminal outcomes of a scroll/load session.
type Outcome string

const (
	// OutcomeCapReached means the configured company cap was hit.
	OutcomeCapReached Outcome = "cap-reached"

	// OutcomeNoMoreContent means scrolling stalled for the full budget.
	OutcomeNoMoreContent Outcome = "no-more-content"

	// OutcomePageLimit means the configured hard page limit was hit.
	OutcomePageLimit Outcome = "page-limit"
)

// scrollState models the driver's cycle state.
type scrollState string

const (
	stateExtracting scrollState = "extracting"
	stateScrolling  scrollState = "scrolling"
	stateProgressed scrollState = "progressed"
	stateStalled    scrollState = "stalled"
)

// Result is the output of one scroll/load session: the accumulated,
// session-deduplicated companies and the terminal outcome.
type Result struct {
	Companies []models.RawCompany
	Outcome   Outcome
	Pages     int
}

// Selector candidates for the company directory, ordered by priority.
// The obfuscated class names are the site's current CSS-module output;
// the generic patterns survive a class-hash rotation.
var (
	resultsRegionSelectors = []string{
		"div._section_i9oky_163._results_i9oky_343",
		`[class*="results"]`,
	}

	companySelectors = []string{
		"a._company_i9oky_355",
		`a[class*="company"]`,
		`a[href*="/companies/"]`,
	}

	nameSelectors = []string{
		"span._coName_i9oky_470",
		".company-name",
		`[class*="coName"]`,
		`span[class*="Name"]`,
	}

	locationSelectors = []string{
		"span._coLocation_i9oky_486",
		".company-location",
		`[class*="coLocation"]`,
		`span[class*="Location"]`,
	}

	descriptionSelectors = []string{
		"span._coDescription_i9oky_495",
		".company-description",
		`[class*="coDescription"]`,
		`span[class*="Description"]`,
	}

	tagContainerSelectors = []string{
		"div._pillWrapper_i9oky_33",
		".pill-wrapper",
		`[class*="pillWrapper"]`,
	}

	tagLinkSelectors = []string{
		"a._tagLink_i9oky_1040",
		".tag-link",
		`[class*="tagLink"]`,
	}
)

// showResultsButton triggers the results view after facet changes.
const showResultsButton = "div._showResults_i9oky_169 button"
