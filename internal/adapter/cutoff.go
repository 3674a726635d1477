package adapter

import (
	"time"

	"github.com/araddon/dateparse"
)

// CutoffCheck is the three-valued outcome of comparing a wild date string
// against the historical cutoff. Unparseable dates fail open: the document is
// treated as after the cutoff, preferring over-fetching to silently dropping
// recent items.
type CutoffCheck int

const (
	CutoffAfter CutoffCheck = iota
	CutoffBefore
	CutoffUnparseable
)

// CheckCutoff parses dateText permissively (month-name, ISO and slash
// formats) and compares it to cutoff.
func CheckCutoff(dateText string, cutoff time.Time) CutoffCheck {
	parsed, err := dateparse.ParseAny(dateText)
	if err != nil {
		return CutoffUnparseable
	}
	if parsed.Before(cutoff) {
		return CutoffBefore
	}
	return CutoffAfter
}

// StopsCrawl reports whether this check result terminates a historical crawl.
func (c CutoffCheck) StopsCrawl() bool {
	return c == CutoffBefore
}
