package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
)

var testCutoff = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func rowHTML(date, href, title string) string {
	return fmt.Sprintf(`<div class="views-row"><time datetime="%s">%s</time><a href="%s">%s</a></div>`, date, date, href, title)
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	first, err := buildPageURL("https://example.gov/news", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.gov/news", first, "page zero uses the bare url")

	third, err := buildPageURL("https://example.gov/news", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://example.gov/news?page=3", third)
}

func TestPaginatedStopsAtCutoff(t *testing.T) {
	t.Parallel()

	var page1Hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte(
				rowHTML("2025-08-01", "/a", "Recent Designation") +
					rowHTML("2024-01-15", "/b", "Ancient Designation")))
		default:
			page1Hits.Add(1)
			// Would contain after-cutoff items, but must never be reached.
			_, _ = w.Write([]byte(rowHTML("2025-07-01", "/c", "Mixed In")))
		}
	}))
	defer server.Close()

	a := NewPaginated(server.Client(), "test-agent", testCutoff, 0, nil)
	src := config.Source{
		Name:       "OFAC",
		Kind:       config.KindPaginated,
		URL:        server.URL + "/recent-actions",
		Historical: true,
		MaxPages:   10,
		Selectors:  config.SelectorConfig{Row: ".views-row"},
	}

	var docs []domain.RawDocument
	res, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)

	assert.True(t, res.StoppedAtCutoff)
	require.Len(t, docs, 1, "nothing may be emitted past the first before-cutoff item")
	assert.Equal(t, "Recent Designation", docs[0].Title)
	assert.Zero(t, page1Hits.Load(), "crawl must not continue past the cutoff page")
}

func TestPaginatedUnparseableDateDoesNotStop(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			_, _ = w.Write([]byte(`<html></html>`))
			return
		}
		_, _ = w.Write([]byte(
			rowHTML("to be announced", "/a", "Undated Item") +
				rowHTML("2025-09-01", "/b", "Dated Item")))
	}))
	defer server.Close()

	a := NewPaginated(server.Client(), "test-agent", testCutoff, 0, nil)
	src := config.Source{
		Name:       "OFAC",
		URL:        server.URL,
		Historical: true,
		MaxPages:   5,
		Selectors:  config.SelectorConfig{Row: ".views-row"},
	}

	var docs []domain.RawDocument
	res, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)
	assert.False(t, res.StoppedAtCutoff)
	assert.Len(t, docs, 2, "unparseable dates fail open and keep their documents")
}

func TestPaginatedWalksUntilEmptyPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte(rowHTML("2025-08-01", "/a", "Page Zero Item")))
		case "1":
			_, _ = w.Write([]byte(rowHTML("2025-07-01", "/b", "Page One Item")))
		default:
			_, _ = w.Write([]byte(`<html></html>`))
		}
	}))
	defer server.Close()

	a := NewPaginated(server.Client(), "test-agent", testCutoff, 0, nil)
	src := config.Source{
		Name:       "Treasury",
		URL:        server.URL,
		Historical: true,
		MaxPages:   10,
		Selectors:  config.SelectorConfig{Row: ".views-row"},
	}

	var docs []domain.RawDocument
	res, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)
	assert.False(t, res.StoppedAtCutoff)
	require.Len(t, docs, 2)
	assert.Equal(t, "Page Zero Item", docs[0].Title)
	assert.Equal(t, "Page One Item", docs[1].Title)
}

func TestPaginatedDetailFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			_, _ = w.Write([]byte(`<html></html>`))
			return
		}
		_, _ = w.Write([]byte(
			rowHTML("2025-08-01", "/press/1", "Treasury Sanctions Networks") +
				rowHTML("2025-07-20", "/press/missing", "Item With Broken Detail")))
	})
	mux.HandleFunc("/press/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><div class="field-item">Full press release naming Viktor Petrov.</div></html>`))
	})
	mux.HandleFunc("/press/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := NewPaginated(server.Client(), "test-agent", testCutoff, 0, nil)
	src := config.Source{
		Name:       "US_Treasury",
		URL:        server.URL,
		Historical: true,
		MaxPages:   2,
		Selectors:  config.SelectorConfig{Row: ".views-row"},
		Detail:     config.DetailConfig{Fetch: true, Body: "div.field-item"},
	}

	var docs []domain.RawDocument
	_, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "Full press release naming Viktor Petrov.", docs[0].Body)
	assert.Equal(t, "Item With Broken Detail", docs[1].Body, "failed detail fetch substitutes the listing title")
}

func TestPaginatedNonHistoricalFetchesOnePage(t *testing.T) {
	t.Parallel()

	var pages atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		_, _ = w.Write([]byte(rowHTML("2024-01-01", "/old", "Old But Kept")))
	}))
	defer server.Close()

	a := NewPaginated(server.Client(), "test-agent", testCutoff, 0, nil)
	src := config.Source{
		Name:      "OFAC",
		URL:       server.URL,
		MaxPages:  100,
		Selectors: config.SelectorConfig{Row: ".views-row"},
	}

	var docs []domain.RawDocument
	res, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)
	assert.Equal(t, int32(1), pages.Load())
	assert.False(t, res.StoppedAtCutoff, "cutoff applies to historical crawls only")
	assert.Len(t, docs, 1)
}
