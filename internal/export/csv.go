package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/phume/amlwatch/internal/ports"
)

// Snapshot writes the current store contents as two CSV files (articles.csv
// and entities.csv) into dir, for demo-mode dashboards that run without a
// database.
func Snapshot(ctx context.Context, store ports.ArticleStore, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	if err := writeArticles(ctx, store, filepath.Join(dir, "articles.csv"), limit); err != nil {
		return err
	}
	return writeEntities(ctx, store, filepath.Join(dir, "entities.csv"), limit)
}

func writeArticles(ctx context.Context, store ports.ArticleStore, path string, limit int) error {
	articles, err := store.RecentArticles(ctx, limit)
	if err != nil {
		return fmt.Errorf("load articles: %w", err)
	}

	rows := [][]string{{"id", "source", "title", "url", "date", "content", "ingested_at"}}
	for _, a := range articles {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Source,
			a.Title,
			a.URL,
			a.Date,
			a.Content,
			a.IngestedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV(path, rows)
}

func writeEntities(ctx context.Context, store ports.ArticleStore, path string, limit int) error {
	records, err := store.RecentEntities(ctx, limit)
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	rows := [][]string{{"name", "type", "source", "date", "title", "url"}}
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.Type, r.Source, r.Date, r.Title, r.URL})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	// WriteAll flushes, so the only error left to surface is the close.
	if err := csv.NewWriter(f).WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
