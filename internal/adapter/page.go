package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

// looseDateExpr recovers dates like "January 14, 2026" from row text when the
// configured date selector finds nothing.
var looseDateExpr = regexp.MustCompile(`[A-Z][a-z]+ \d{1,2}, \d{4}`)

// listingRow is one parsed item of a scraped listing page.
type listingRow struct {
	title string
	url   string
	date  string
	body  string
}

// parseRow derives title, link, date and body text from one row element.
// Returns false when the row carries no usable link.
func parseRow(row *goquery.Selection, pageURL string, sel config.SelectorConfig) (listingRow, bool) {
	linkSel := sel.TitleLink
	if linkSel == "" {
		linkSel = "a"
	}
	link := row.Find(linkSel).First()
	href, ok := link.Attr("href")
	if !ok {
		return listingRow{}, false
	}

	title := strings.TrimSpace(link.Text())
	if title == "" {
		return listingRow{}, false
	}

	dateSel := sel.Date
	if dateSel == "" {
		dateSel = "time"
	}
	date := ""
	if el := row.Find(dateSel).First(); el.Length() > 0 {
		if dt, ok := el.Attr("datetime"); ok && dt != "" {
			date = dt
		} else {
			date = strings.TrimSpace(el.Text())
		}
	}
	if date == "" {
		date = looseDateExpr.FindString(row.Text())
	}
	if date == "" {
		date = time.Now().UTC().Format(time.RFC3339)
	}

	body := title
	if sel.Body != "" {
		if text := strings.TrimSpace(row.Find(sel.Body).First().Text()); text != "" {
			body = text
		}
	}

	return listingRow{
		title: title,
		url:   resolveURL(pageURL, href),
		date:  date,
		body:  body,
	}, true
}

// SinglePageAdapter scrapes one listing page, no pagination.
type SinglePageAdapter struct {
	fetch  *fetcher
	logger *slog.Logger
}

var _ ports.SourceAdapter = (*SinglePageAdapter)(nil)

// NewSinglePage builds the one-page scrape adapter.
func NewSinglePage(client *http.Client, userAgent string, logger *slog.Logger) *SinglePageAdapter {
	return &SinglePageAdapter{fetch: newFetcher(client, userAgent), logger: logger}
}

// Kind identifies the adapter inside the registry.
func (a *SinglePageAdapter) Kind() config.SourceKind {
	return config.KindSinglePage
}

// Produce extracts all rows of the listing page. Zero matching rows signals a
// structural mismatch rather than a hard fault.
func (a *SinglePageAdapter) Produce(ctx context.Context, src config.Source, emit ports.EmitFunc) (ports.ProduceResult, error) {
	doc, err := a.fetch.document(ctx, src.URL)
	if err != nil {
		return ports.ProduceResult{}, fmt.Errorf("source %s: %w", src.Name, err)
	}

	rows := doc.Find(src.Selectors.Row)
	if rows.Length() == 0 {
		return ports.ProduceResult{}, fmt.Errorf("source %s selector %q: %w", src.Name, src.Selectors.Row, ErrStructuralMismatch)
	}

	var emitErr error
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		r, ok := parseRow(row, src.URL, src.Selectors)
		if !ok {
			return true
		}
		emitErr = emit(domain.RawDocument{
			Source:      src.Name,
			Title:       r.title,
			URL:         r.url,
			PublishedAt: r.date,
			Body:        r.body,
		})
		return emitErr == nil
	})
	if emitErr != nil {
		return ports.ProduceResult{}, emitErr
	}
	return ports.ProduceResult{}, nil
}
