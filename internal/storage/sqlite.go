package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    title TEXT NOT NULL,
    url TEXT UNIQUE NOT NULL,
    date TEXT,
    content TEXT,
    ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    article_id INTEGER NOT NULL,
    FOREIGN KEY(article_id) REFERENCES articles(id)
);
`

// Store persists articles and their entities in sqlite. It is safe for
// concurrent use by multiple source workers; the unique index on url is the
// arbiter when two workers race on the same document.
type Store struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*Store)(nil)

// Open creates (or opens) the database file and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether an article with this URL was already persisted. It
// runs before extraction, so it must stay a single indexed lookup.
func (s *Store) Exists(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").
		From("articles").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Save inserts the article and all its entities in one transaction, or
// nothing. A duplicate URL returns (false, nil); any other failure rolls the
// whole write back.
func (s *Store) Save(ctx context.Context, article domain.Article, entities []domain.Entity) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ingested := article.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now().UTC()
	}

	query, args, err := sq.Insert("articles").
		Columns("source", "title", "url", "date", "content", "ingested_at").
		Values(article.Source, article.Title, article.URL, article.Date, article.Content, ingested).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build article insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert article: %w", err)
	}

	articleID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("article id: %w", err)
	}

	for _, entity := range entities {
		query, args, err := sq.Insert("entities").
			Columns("name", "type", "article_id").
			Values(entity.Name, entity.Type, articleID).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build entity insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("insert entity %q: %w", entity.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// RecentArticles returns up to limit articles ordered by publication date
// descending.
func (s *Store) RecentArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	query, args, err := sq.Select("id", "source", "title", "url", "date", "content", "ingested_at").
		From("articles").
		OrderBy("date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Source, &a.Title, &a.URL, &a.Date, &a.Content, &a.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// RecentEntities returns up to limit entities joined with their parent
// article's metadata, ordered by article date descending.
func (s *Store) RecentEntities(ctx context.Context, limit int) ([]domain.EntityRecord, error) {
	query, args, err := sq.Select("e.name", "e.type", "a.source", "a.date", "a.title", "a.url").
		From("entities e").
		Join("articles a ON e.article_id = a.id").
		OrderBy("a.date DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entities query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var records []domain.EntityRecord
	for rows.Next() {
		var r domain.EntityRecord
		if err := rows.Scan(&r.Name, &r.Type, &r.Source, &r.Date, &r.Title, &r.URL); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// EntityCount reports the number of stored entities.
func (s *Store) EntityCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// ArticleCount reports the number of stored articles.
func (s *Store) ArticleCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
