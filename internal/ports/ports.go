package ports

import (
	"context"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
)

// EmitFunc receives one raw document from an adapter. Returning an error stops
// the adapter early; the error propagates out of Produce unchanged.
type EmitFunc func(domain.RawDocument) error

// ProduceResult distinguishes a normal completion from a historical crawl that
// stopped at its date cutoff.
type ProduceResult struct {
	StoppedAtCutoff bool
}

// SourceAdapter turns one source's native listing into a stream of raw
// documents, newest first where the source exposes that order.
type SourceAdapter interface {
	Kind() config.SourceKind
	Produce(ctx context.Context, src config.Source, emit EmitFunc) (ProduceResult, error)
}

// ExtractedEntity is a name plus classification before it is attached to an
// article.
type ExtractedEntity struct {
	Name string
	Type string
}

// TextExtractor pulls entities out of document text. Implementations never
// fail: a degraded backend yields an empty or reduced result.
type TextExtractor interface {
	Extract(ctx context.Context, text string) []ExtractedEntity
}

// ArticleStore is the single source of truth for processed documents.
type ArticleStore interface {
	// Exists is the dedup gate; it runs before extraction so known URLs never
	// cost an extraction call.
	Exists(ctx context.Context, url string) (bool, error)

	// Save inserts the article and its entities in one transaction, or
	// nothing. A duplicate URL returns (false, nil): the benign race outcome.
	Save(ctx context.Context, article domain.Article, entities []domain.Entity) (bool, error)

	RecentArticles(ctx context.Context, limit int) ([]domain.Article, error)
	RecentEntities(ctx context.Context, limit int) ([]domain.EntityRecord, error)
}
