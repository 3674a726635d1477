package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

// PaginatedAdapter walks listing pages sequentially until the page budget is
// exhausted or a historical crawl reaches an item older than the cutoff.
// Pages are fetched with a mandatory delay; the target sites are sensitive to
// burst traffic.
type PaginatedAdapter struct {
	fetch     *fetcher
	cutoff    time.Time
	pageDelay time.Duration
	logger    *slog.Logger
}

var _ ports.SourceAdapter = (*PaginatedAdapter)(nil)

// NewPaginated builds the historical scrape adapter.
func NewPaginated(client *http.Client, userAgent string, cutoff time.Time, pageDelay time.Duration, logger *slog.Logger) *PaginatedAdapter {
	return &PaginatedAdapter{
		fetch:     newFetcher(client, userAgent),
		cutoff:    cutoff,
		pageDelay: pageDelay,
		logger:    logger,
	}
}

// Kind identifies the adapter inside the registry.
func (a *PaginatedAdapter) Kind() config.SourceKind {
	return config.KindPaginated
}

// Produce emits documents page by page, newest first. The crawl stops at the
// first item dated before the cutoff; items whose dates cannot be parsed do
// not stop it (fail open).
func (a *PaginatedAdapter) Produce(ctx context.Context, src config.Source, emit ports.EmitFunc) (ports.ProduceResult, error) {
	maxPages := src.MaxPages
	if maxPages <= 0 || !src.Historical {
		maxPages = 1
	}

	for page := 0; page < maxPages; page++ {
		if page > 0 {
			if err := a.sleep(ctx); err != nil {
				return ports.ProduceResult{}, err
			}
		}

		pageURL, err := buildPageURL(src.URL, page)
		if err != nil {
			return ports.ProduceResult{}, fmt.Errorf("source %s: %w", src.Name, err)
		}

		doc, err := a.fetch.document(ctx, pageURL)
		if err != nil {
			return ports.ProduceResult{}, fmt.Errorf("source %s page %d: %w", src.Name, page, err)
		}

		rows := a.collectRows(doc, pageURL, src.Selectors)
		if len(rows) == 0 {
			if page == 0 {
				return ports.ProduceResult{}, fmt.Errorf("source %s selector %q: %w", src.Name, src.Selectors.Row, ErrStructuralMismatch)
			}
			// Ran past the last page.
			return ports.ProduceResult{}, nil
		}

		for _, r := range rows {
			if src.Historical && CheckCutoff(r.date, a.cutoff).StopsCrawl() {
				a.debug("reached cutoff", "source", src.Name, "page", page, "date", r.date)
				return ports.ProduceResult{StoppedAtCutoff: true}, nil
			}

			body := r.body
			if src.Detail.Fetch {
				body = a.detailBody(ctx, src, r)
			}

			err := emit(domain.RawDocument{
				Source:      src.Name,
				Title:       r.title,
				URL:         r.url,
				PublishedAt: r.date,
				Body:        body,
			})
			if err != nil {
				return ports.ProduceResult{}, err
			}
		}
	}
	return ports.ProduceResult{}, nil
}

func (a *PaginatedAdapter) collectRows(doc *goquery.Document, pageURL string, sel config.SelectorConfig) []listingRow {
	var rows []listingRow
	doc.Find(sel.Row).Each(func(_ int, row *goquery.Selection) {
		if r, ok := parseRow(row, pageURL, sel); ok {
			rows = append(rows, r)
		}
	})
	return rows
}

// detailBody fetches the item's own page for its full text, substituting the
// listing title when the follow-up fetch fails.
func (a *PaginatedAdapter) detailBody(ctx context.Context, src config.Source, r listingRow) string {
	text, err := a.fetch.bodyText(ctx, r.url, src.Detail.Body)
	if err != nil {
		a.debug("detail fetch failed, using listing title", "source", src.Name, "url", r.url, "error", err)
		return r.title
	}
	return text
}

func (a *PaginatedAdapter) sleep(ctx context.Context) error {
	if a.pageDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(a.pageDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *PaginatedAdapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func buildPageURL(base string, page int) (string, error) {
	if page == 0 {
		return base, nil
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %s: %w", base, err)
	}
	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
