package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

// FeedAdapter turns a syndication feed into raw documents. Feed entries map
// directly: title, link and summary become the document fields.
type FeedAdapter struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.SourceAdapter = (*FeedAdapter)(nil)

// NewFeed wires a feed parser with the configured client identity.
func NewFeed(client *http.Client, userAgent string, logger *slog.Logger) *FeedAdapter {
	parser := gofeed.NewParser()
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	if client != nil {
		parser.Client = client
	}
	return &FeedAdapter{parser: parser, logger: logger}
}

// Kind identifies the adapter inside the registry.
func (a *FeedAdapter) Kind() config.SourceKind {
	return config.KindFeed
}

// Produce parses the feed and emits one document per entry. A missing
// published date defaults to the fetch time, not an error.
func (a *FeedAdapter) Produce(ctx context.Context, src config.Source, emit ports.EmitFunc) (ports.ProduceResult, error) {
	feed, err := a.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return ports.ProduceResult{}, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		title := item.Title
		if title == "" {
			title = "No Title"
		}

		published := item.Published
		if published == "" {
			published = item.Updated
		}
		if published == "" {
			published = time.Now().UTC().Format(time.RFC3339)
		}

		body := item.Description
		if body == "" {
			body = item.Content
		}

		doc := domain.RawDocument{
			Source:      src.Name,
			Title:       title,
			URL:         item.Link,
			PublishedAt: published,
			Body:        body,
		}
		if err := emit(doc); err != nil {
			return ports.ProduceResult{}, err
		}
	}
	return ports.ProduceResult{}, nil
}
