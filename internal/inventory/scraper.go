package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"dropwatch/internal/browser"
	"dropwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("dropwatch.inventory")

const claimButtonSelector = `button:has-text("Claim")`

// Scraper reads the streaming platform's inventory page through an
// automation surface. The platform requires a logged-in browser, so
// unlike the catalog this cannot be fetched with a plain HTTP client.
type Scraper struct {
	surface browser.Surface
	url     string
}

func NewScraper(surface browser.Surface, inventoryURL string) Scraper {
	return Scraper{surface: surface, url: inventoryURL}
}

func (s Scraper) document(ctx context.Context) (*goquery.Document, error) {
	err := s.surface.Navigate(ctx, s.url)
	if err != nil {
		return nil, err
	}
	html, err := s.surface.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// FetchProgress collects the title and completion percent of every
// progress bar on the inventory page. The title is not a child of the
// progress bar; it is the nearest preceding paragraph in the card, so
// we walk previous siblings up through the ancestor chain the same way
// the page renders them.
func (s Scraper) FetchProgress(ctx context.Context) (Progress, error) {
	ctx, span := tracer.Start(ctx, "FetchProgress")
	defer span.End()

	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}

	progress := Progress{}
	doc.Find(`[role="progressbar"][aria-valuenow]`).Each(func(_ int, bar *goquery.Selection) {
		percent, err := strconv.Atoi(bar.AttrOr("aria-valuenow", ""))
		if err != nil {
			return
		}
		title := findTitleFor(bar)
		if title == "" {
			return
		}
		if _, seen := progress[title]; seen {
			return
		}
		progress[title] = percent
	})

	slog.DebugContext(ctx, "inventory progress", "entries", len(progress))
	return progress, nil
}

func findTitleFor(bar *goquery.Selection) string {
	for node := bar.Parent(); node.Length() > 0; node = node.Parent() {
		for prev := node.Prev(); prev.Length() > 0; prev = prev.Prev() {
			text := firstText(prev)
			if text != "" {
				return text
			}
		}
	}
	return ""
}

func firstText(sel *goquery.Selection) string {
	if sel.Is("p") {
		return htmlutil.CleanText(sel.Text())
	}
	return htmlutil.CleanText(sel.Find("p").First().Text())
}

// FetchRecentClaims sweeps the claimed section for "N days ago" style
// labels and pairs each with the nearest reward name in the same card.
func (s Scraper) FetchRecentClaims(ctx context.Context) ([]ClaimRecord, error) {
	ctx, span := tracer.Start(ctx, "FetchRecentClaims")
	defer span.End()

	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}

	var records []ClaimRecord
	seen := make(map[string]struct{})
	doc.Find("p, span").Each(func(_ int, label *goquery.Selection) {
		days, ok := ParseRelativeDays(label.Text())
		if !ok {
			return
		}
		name := findClaimName(label)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		records = append(records, ClaimRecord{Name: name, DaysSinceClaim: days})
	})
	return records, nil
}

// the claim card nests the name and the time label a few levels apart
const claimCardDepth = 5

func findClaimName(label *goquery.Selection) string {
	node := label
	for d := 0; d < claimCardDepth && node.Length() > 0; d++ {
		node = node.Parent()
		name := ""
		node.Find("p, span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := htmlutil.CleanText(sel.Text())
			if text == "" {
				return true
			}
			if _, isTime := ParseRelativeDays(text); isTime {
				return true
			}
			name = text
			return false
		})
		if name != "" {
			return name
		}
	}
	return ""
}

// ClaimReady clicks every visible claim control once. A failing button
// is logged and skipped so it cannot block the remaining buttons,
// except when the failure reports the surface itself is gone, which
// aborts immediately.
func (s Scraper) ClaimReady(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ClaimReady")
	defer span.End()

	doc, err := s.document(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	doc.Find("button").Each(func(_ int, btn *goquery.Selection) {
		if strings.Contains(btn.Text(), "Claim") {
			total++
		}
	})

	claimed := 0
	for i := 0; i < total; i++ {
		// buttons disappear as they are claimed, always click the first
		_, err := s.surface.Click(ctx, claimButtonSelector)
		if errors.Is(err, browser.ErrSurfaceClosed) {
			return claimed, fmt.Errorf("claim: %w", err)
		}
		if err != nil {
			slog.WarnContext(ctx, "claim button failed", "index", i, "err", err)
			continue
		}
		claimed++
		slog.InfoContext(ctx, "claimed a reward")
	}
	return claimed, nil
}
