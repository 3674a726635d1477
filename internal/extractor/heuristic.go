package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/phume/amlwatch/internal/ports"
)

var (
	// sanctionExpr matches "Entity Name (Country)" constructs common in
	// Treasury and OFAC designation releases.
	sanctionExpr = regexp.MustCompile(`([A-Z0-9][A-Za-z0-9\.\-\s]+?)\s\((Mexico|Canada|Poland|China|Russia|Iran|Korea|Venezuela|Colombia|Ecuador|Brazil)\)`)

	// capitalizedExpr matches runs of two or more capitalized words.
	capitalizedExpr = regexp.MustCompile(`[A-Z][a-z]+(?:\s[A-Z][a-z]+)+`)
)

// stopTerms filters generic institutional and date phrases the capitalized-run
// pass would otherwise report as entities.
var stopTerms = []string{
	"Press Release", "Immediate Release", "United States", "Department of Justice",
	"Washington", "New York", "District Court", "Attorney General", "Homeland Security",
	"Treasury Department", "Foreign Assets", "Control", "Recent Actions",
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// HeuristicExtractor finds candidate entities with two regex passes: a
// country-tagged sanction pattern, then a generic capitalized-run fallback.
type HeuristicExtractor struct{}

var _ ports.TextExtractor = (*HeuristicExtractor)(nil)

// NewHeuristic builds the deterministic fallback extractor.
func NewHeuristic() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract runs both passes over text, deduplicated by exact name with the
// first match winning. Empty input yields nil.
func (h *HeuristicExtractor) Extract(_ context.Context, text string) []ports.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var entities []ports.ExtractedEntity
	seen := map[string]struct{}{}

	for _, m := range sanctionExpr.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entities = append(entities, ports.ExtractedEntity{
			Name: name,
			Type: fmt.Sprintf("Sanctioned Entity (%s)", m[2]),
		})
	}

	for _, match := range capitalizedExpr.FindAllString(text, -1) {
		name := strings.TrimSpace(match)
		if _, ok := seen[name]; ok {
			continue
		}
		if len(name) < 4 {
			continue
		}
		if containsStopTerm(name) {
			continue
		}
		if subsumedByKnown(name, entities) {
			continue
		}

		seen[name] = struct{}{}
		entities = append(entities, ports.ExtractedEntity{
			Name: name,
			Type: "Potential Entity",
		})
	}

	return entities
}

func containsStopTerm(name string) bool {
	for _, term := range stopTerms {
		if strings.Contains(name, term) {
			return true
		}
	}
	return false
}

// subsumedByKnown drops a candidate already covered by a longer match from an
// earlier pass, e.g. "Acme Corp" after "Acme Corp" was tagged with a country.
func subsumedByKnown(name string, known []ports.ExtractedEntity) bool {
	for _, e := range known {
		if strings.Contains(name, e.Name) {
			return true
		}
	}
	return false
}
