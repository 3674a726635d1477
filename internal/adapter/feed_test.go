package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Press Releases</title>
    <item>
      <title>Money Laundering Charges Announced</title>
      <link>https://example.gov/news/1</link>
      <pubDate>Mon, 07 Jul 2025 10:00:00 GMT</pubDate>
      <description>John Smith was charged in a laundering scheme.</description>
    </item>
    <item>
      <title>Undated Advisory</title>
      <link>https://example.gov/news/2</link>
      <description>Jane Doe named in advisory.</description>
    </item>
    <item>
      <title>No Link Item</title>
      <description>should be skipped</description>
    </item>
  </channel>
</rss>`

func TestFeedProduce(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer server.Close()

	a := NewFeed(server.Client(), "test-agent", nil)
	src := config.Source{Name: "DHS", Kind: config.KindFeed, URL: server.URL}

	var docs []domain.RawDocument
	res, err := a.Produce(context.Background(), src, collectDocs(&docs))
	require.NoError(t, err)
	assert.False(t, res.StoppedAtCutoff)

	require.Len(t, docs, 2, "items without links are skipped")

	assert.Equal(t, "DHS", docs[0].Source)
	assert.Equal(t, "Money Laundering Charges Announced", docs[0].Title)
	assert.Equal(t, "https://example.gov/news/1", docs[0].URL)
	assert.Equal(t, "Mon, 07 Jul 2025 10:00:00 GMT", docs[0].PublishedAt)
	assert.Equal(t, "John Smith was charged in a laundering scheme.", docs[0].Body)

	assert.NotEmpty(t, docs[1].PublishedAt, "missing published date defaults to fetch time")
}

func TestFeedProduceTransientFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	a := NewFeed(server.Client(), "test-agent", nil)
	src := config.Source{Name: "DHS", Kind: config.KindFeed, URL: server.URL}

	_, err := a.Produce(context.Background(), src, collectDocs(&[]domain.RawDocument{}))
	assert.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(NewFeed(nil, "test-agent", nil))

	got, err := reg.Resolve(config.KindFeed)
	require.NoError(t, err)
	assert.Equal(t, config.KindFeed, got.Kind())

	_, err = reg.Resolve(config.KindPaginated)
	assert.Error(t, err)
}
