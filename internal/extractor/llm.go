package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/ports"
)

const extractionPrompt = `Extract all financial crime entities, sanctioned individuals, and organizations from the text below.
Respond with ONLY a JSON array, no prose and no markdown, where each element is:
{"name": "...", "type": "Person" or "Organization", "risk_level": "low|medium|high", "risk_category": "..."}

Text:
%s`

// LLMExtractor asks an OpenAI-compatible chat endpoint for structured entity
// output. Every failure mode degrades to an empty result; callers never see
// an error from this path.
type LLMExtractor struct {
	endpoint   string
	model      string
	apiKey     string
	maxChars   int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.TextExtractor = (*LLMExtractor)(nil)

// NewLLM builds a client from configuration. maxChars bounds the excerpt sent
// per request.
func NewLLM(cfg config.LLMConfig, maxChars int, logger *slog.Logger) *LLMExtractor {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &LLMExtractor{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		maxChars: maxChars,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

// Configured reports whether the client has everything it needs to make calls.
func (c *LLMExtractor) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

// Extract submits a bounded excerpt and parses the structured response.
// Network, auth and parse failures are logged and yield nil.
func (c *LLMExtractor) Extract(ctx context.Context, text string) []ports.ExtractedEntity {
	if !c.Configured() || strings.TrimSpace(text) == "" {
		return nil
	}

	excerpt := text
	if len(excerpt) > c.maxChars {
		cut := c.maxChars
		// Back off to a rune boundary so the payload stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	raw, err := c.complete(ctx, fmt.Sprintf(extractionPrompt, excerpt))
	if err != nil {
		c.warn("llm extraction degraded", "error", err)
		return nil
	}

	entities, err := parseEntityArray(raw)
	if err != nil {
		c.warn("llm response unparseable", "error", err)
		return nil
	}
	return entities
}

func (c *LLMExtractor) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You extract risk entities from government press releases."},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return out.Choices[0].Message.Content, nil
}

// parseEntityArray extracts the first well-formed JSON array from content,
// tolerating the model wrapping it in code fences or prose.
func parseEntityArray(content string) ([]ports.ExtractedEntity, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no array in response")
	}

	var parsed []struct {
		Name         string `json:"name"`
		Type         string `json:"type"`
		RiskLevel    string `json:"risk_level"`
		RiskCategory string `json:"risk_category"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}

	var entities []ports.ExtractedEntity
	seen := map[string]struct{}{}
	for _, p := range parsed {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entities = append(entities, ports.ExtractedEntity{
			Name: name,
			Type: classification(p.Type, p.RiskCategory),
		})
	}
	return entities, nil
}

func classification(typ, riskCategory string) string {
	typ = strings.TrimSpace(typ)
	riskCategory = strings.TrimSpace(riskCategory)
	switch {
	case typ == "" && riskCategory == "":
		return "Potential Entity"
	case riskCategory == "":
		return typ
	case typ == "":
		return riskCategory
	default:
		return fmt.Sprintf("%s / %s", typ, riskCategory)
	}
}

func (c *LLMExtractor) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
