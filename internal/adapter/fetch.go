package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrStructuralMismatch marks a listing page whose expected row structure
// matched nothing. It usually means the site layout changed and the source's
// selectors need maintenance, not that the fetch should be retried.
var ErrStructuralMismatch = errors.New("listing structure not recognized")

// fetcher wraps an HTTP client with the browser-like identity several
// government sites require.
type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(client *http.Client, userAgent string) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &fetcher{client: client, userAgent: userAgent}
}

// document fetches a page and parses it with goquery.
func (f *fetcher) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// bodyText fetches a follow-up page and returns the text under selector.
func (f *fetcher) bodyText(ctx context.Context, pageURL, selector string) (string, error) {
	doc, err := f.document(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	if text == "" {
		return "", fmt.Errorf("no content under %q at %s", selector, pageURL)
	}
	return text, nil
}

// resolveURL joins a possibly relative href against the listing page URL.
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
