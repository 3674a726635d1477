package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/phume/amlwatch/internal/ports"
)

// Chain tries the model-backed extractor first and falls back to the
// heuristic one. It is the TextExtractor the coordinator depends on.
type Chain struct {
	primary  ports.TextExtractor
	fallback ports.TextExtractor
	logger   *slog.Logger
}

var _ ports.TextExtractor = (*Chain)(nil)

// NewChain wires the fallback order. primary may be nil (no API key
// configured); fallback may be nil (heuristic pass disabled by config).
func NewChain(primary, fallback ports.TextExtractor, logger *slog.Logger) *Chain {
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

// Extract returns the primary extractor's result when it produced anything,
// otherwise the fallback's. Never fails; empty input yields nil.
func (c *Chain) Extract(ctx context.Context, text string) []ports.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if c.primary != nil {
		if entities := c.primary.Extract(ctx, text); len(entities) > 0 {
			return entities
		}
	}

	if c.fallback == nil {
		if c.primary == nil && c.logger != nil {
			c.logger.Debug("no extractor configured, documents will be filtered out")
		}
		return nil
	}
	return c.fallback.Extract(ctx, text)
}
