package domain

import "time"

// RawDocument is what a source adapter hands to the coordinator: one listing
// item, not yet deduplicated or persisted. PublishedAt keeps the source's raw
// date text; parsing it is the cutoff check's problem, not the adapter's.
type RawDocument struct {
	Source      string
	Title       string
	URL         string
	PublishedAt string
	Body        string
}

// Article is the persisted form of a document. URL is globally unique; the
// pipeline only ever appends articles, never updates or deletes them.
type Article struct {
	ID         int64
	Source     string
	Title      string
	URL        string
	Date       string
	Content    string
	IngestedAt time.Time
}

// Entity is a name plus risk classification extracted from one article. An
// entity exists only as part of the atomic write that created its article.
type Entity struct {
	ID        int64
	Name      string
	Type      string
	ArticleID int64
}

// EntityRecord is an entity joined with its parent article's metadata, the
// shape consumed by the dashboard.
type EntityRecord struct {
	Name   string
	Type   string
	Source string
	Date   string
	Title  string
	URL    string
}
