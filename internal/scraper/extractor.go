package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/models"
)

// ExtractionStrategy produces the raw companies currently rendered on
// the page. Strategies are tried in order; the first that yields a
// plausible batch wins.
type ExtractionStrategy interface {
	Name() string
	Extract(ctx context.Context, page Page) ([]models.RawCompany, error)
}

// Extractor runs the strategy chain and deduplicates across batches
// within a session. Items whose URL was already seen in this session
// are dropped; items without a URL are always kept.
type Extractor struct {
	strategies []ExtractionStrategy
	minCount   int
	seenURLs   map[string]struct{}
	logger     arbor.ILogger
}

// NewExtractor builds the default strategy chain: structural parsing
// first, in-page script extraction as the fallback. minCount is the
// threshold below which a structural result is considered implausible
// and the fallback is consulted.
func NewExtractor(minCount int, logger arbor.ILogger) *Extractor {
	return &Extractor{
		strategies: []ExtractionStrategy{
			&structuralStrategy{logger: logger},
			&scriptStrategy{},
		},
		minCount: minCount,
		seenURLs: make(map[string]struct{}),
		logger:   logger,
	}
}

// ExtractBatch extracts the currently visible companies, picks the best
// strategy result, and returns only the items not yet seen this session.
func (e *Extractor) ExtractBatch(ctx context.Context, page Page) ([]models.RawCompany, error) {
	raw, err := e.extractAll(ctx, page)
	if err != nil {
		return nil, err
	}

	fresh := make([]models.RawCompany, 0, len(raw))
	for _, c := range raw {
		if c.URL != "" {
			if _, dup := e.seenURLs[c.URL]; dup {
				continue
			}
			e.seenURLs[c.URL] = struct{}{}
		}
		fresh = append(fresh, c)
	}

	e.logger.Debug().
		Int("extracted", len(raw)).
		Int("new", len(fresh)).
		Int("session_seen", len(e.seenURLs)).
		Msg("Extraction batch complete")

	return fresh, nil
}

// SeenCount reports how many distinct URLs this session has produced.
func (e *Extractor) SeenCount() int {
	return len(e.seenURLs)
}

func (e *Extractor) extractAll(ctx context.Context, page Page) ([]models.RawCompany, error) {
	var best []models.RawCompany
	var lastErr error

	for _, s := range e.strategies {
		raw, err := s.Extract(ctx, page)
		if err != nil {
			lastErr = err
			e.logger.Warn().Str("strategy", s.Name()).Err(err).Msg("Extraction strategy failed")
			continue
		}

		cleaned := normalize(raw, e.logger)
		if len(cleaned) >= e.minCount {
			return cleaned, nil
		}

		e.logger.Debug().
			Str("strategy", s.Name()).
			Int("count", len(cleaned)).
			Int("min_count", e.minCount).
			Msg("Strategy result below threshold, trying next")

		if len(cleaned) > len(best) {
			best = cleaned
		}
	}

	if best == nil && lastErr != nil {
		return nil, fmt.Errorf("all extraction strategies failed: %w", lastErr)
	}
	return best, nil
}

// normalize drops items lacking both a name and a URL, then fills the
// remaining optional fields so every returned item is fully populated.
func normalize(raw []models.RawCompany, logger arbor.ILogger) []models.RawCompany {
	out := make([]models.RawCompany, 0, len(raw))
	for _, c := range raw {
		if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.URL) == "" {
			logger.Debug().Int("index", c.Index).Msg("Dropping item without name or URL")
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = "Unknown"
		}
		c.Location = strings.TrimSpace(c.Location)
		c.Description = strings.TrimSpace(c.Description)
		if c.Tags == nil {
			c.Tags = []string{}
		}
		c.Index = len(out)
		out = append(out, c)
	}
	return out
}

// structuralStrategy pulls the results region's HTML out of the page and
// parses it with goquery, walking prioritized selector lists per field.
// Tag pills are anchors nested inside the card anchor; serializing the
// card and re-parsing it auto-closes the outer anchor at the first
// nested one, hoisting the pills out of the card. Tags are therefore
// collected in a separate in-page pass against the live DOM and merged
// onto the parsed cards.
type structuralStrategy struct {
	logger arbor.ILogger
}

func (s *structuralStrategy) Name() string { return "structural" }

// tagsByCardScript reads tag pill texts per company card in the live
// DOM, keyed by the card's href.
const tagsByCardScript = `(() => {
	const anchorSelectors = ['a._company_i9oky_355', 'a[class*="company"]', 'a[href*="/companies/"]'];
	let anchors = [];
	for (const sel of anchorSelectors) {
		anchors = Array.from(document.querySelectorAll(sel));
		if (anchors.length > 0) break;
	}
	return anchors.map(a => ({
		url: a.href || "",
		tags: Array.from(a.querySelectorAll('[class*="pillWrapper"] a, [class*="tagLink"]'))
			.map(t => t.textContent.trim())
			.filter(t => t.length > 0)
	}));
})()`

type cardTags struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

func (s *structuralStrategy) Extract(ctx context.Context, page Page) ([]models.RawCompany, error) {
	var html string
	var err error
	for _, sel := range resultsRegionSelectors {
		html, err = page.OuterHTML(ctx, sel)
		if err == nil && html != "" {
			break
		}
	}
	if html == "" {
		return nil, fmt.Errorf("results region not found: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing results region: %w", err)
	}

	var anchors *goquery.Selection
	for _, sel := range companySelectors {
		anchors = doc.Find(sel)
		if anchors.Length() > 0 {
			break
		}
	}
	if anchors == nil || anchors.Length() == 0 {
		return []models.RawCompany{}, nil
	}

	companies := make([]models.RawCompany, 0, anchors.Length())
	anchors.Each(func(i int, a *goquery.Selection) {
		c := models.RawCompany{
			Index:            i,
			Name:             firstText(a, nameSelectors),
			Location:         firstText(a, locationSelectors),
			Description:      firstText(a, descriptionSelectors),
			Tags:             extractTags(a),
			ExtractionMethod: models.ExtractionMethodStructural,
		}
		if href, ok := a.Attr("href"); ok {
			c.URL = absoluteURL(href)
		}
		if src, ok := a.Find("img").First().Attr("src"); ok {
			c.LogoURL = src
		}
		companies = append(companies, c)
	})

	s.overlayTags(ctx, page, companies)

	return companies, nil
}

// overlayTags fills tags the HTML re-parse lost. Cards are matched by
// URL, falling back to document position for URL-less cards. A failed
// in-page pass keeps whatever goquery found.
func (s *structuralStrategy) overlayTags(ctx context.Context, page Page, companies []models.RawCompany) {
	var cards []cardTags
	if err := page.Evaluate(ctx, tagsByCardScript, &cards); err != nil {
		s.logger.Warn().Err(err).Msg("In-page tag collection failed")
		return
	}

	byURL := make(map[string][]string, len(cards))
	for _, card := range cards {
		if card.URL != "" && len(card.Tags) > 0 {
			byURL[absoluteURL(card.URL)] = card.Tags
		}
	}

	for i := range companies {
		if len(companies[i].Tags) > 0 {
			continue
		}
		if tags, ok := byURL[companies[i].URL]; ok {
			companies[i].Tags = tags
		} else if companies[i].URL == "" && i < len(cards) {
			companies[i].Tags = cards[i].Tags
		}
	}
}

func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if node := root.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func extractTags(root *goquery.Selection) []string {
	var container *goquery.Selection
	for _, sel := range tagContainerSelectors {
		container = root.Find(sel)
		if container.Length() > 0 {
			break
		}
	}
	if container == nil || container.Length() == 0 {
		return []string{}
	}

	tags := []string{}
	for _, sel := range tagLinkSelectors {
		container.Find(sel).Each(func(_ int, link *goquery.Selection) {
			if text := strings.TrimSpace(link.Text()); text != "" {
				tags = append(tags, text)
			}
		})
		if len(tags) > 0 {
			break
		}
	}
	return tags
}

func absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return "https://www.ycombinator.com" + href
}

// scriptStrategy evaluates an extraction script inside the page itself,
// used when structural parsing cannot find enough items. The script
// mirrors the structural selector chain but runs against the live DOM.
type scriptStrategy struct{}

func (s *scriptStrategy) Name() string { return "script" }

const extractionScript = `(() => {
	const pick = (root, selectors) => {
		for (const sel of selectors) {
			const node = root.querySelector(sel);
			if (node && node.textContent.trim()) return node.textContent.trim();
		}
		return "";
	};
	const anchorSelectors = ['a._company_i9oky_355', 'a[class*="company"]', 'a[href*="/companies/"]'];
	let anchors = [];
	for (const sel of anchorSelectors) {
		anchors = Array.from(document.querySelectorAll(sel));
		if (anchors.length > 0) break;
	}
	return anchors.map((a, i) => {
		const tags = Array.from(a.querySelectorAll('[class*="pillWrapper"] a, [class*="tagLink"]'))
			.map(t => t.textContent.trim())
			.filter(t => t.length > 0);
		const img = a.querySelector('img');
		return {
			index: i,
			name: pick(a, ['span._coName_i9oky_470', '.company-name', '[class*="coName"]', 'span[class*="Name"]']),
			location: pick(a, ['span._coLocation_i9oky_486', '.company-location', '[class*="coLocation"]', 'span[class*="Location"]']),
			description: pick(a, ['span._coDescription_i9oky_495', '.company-description', '[class*="coDescription"]', 'span[class*="Description"]']),
			tags: tags,
			url: a.href || "",
			logo_url: img ? (img.src || "") : "",
			extraction_method: "script-fallback"
		};
	});
})()`

func (s *scriptStrategy) Extract(ctx context.Context, page Page) ([]models.RawCompany, error) {
	var companies []models.RawCompany
	if err := page.Evaluate(ctx, extractionScript, &companies); err != nil {
		return nil, fmt.Errorf("in-page extraction: %w", err)
	}
	return companies, nil
}
