package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "AMLWATCH_CONFIG"
	dbPathEnv     = "AMLWATCH_DB_PATH"
	llmKeyEnv     = "AMLWATCH_LLM_API_KEY"
	geminiKeyEnv  = "GEMINI_API_KEY"
)

// Validation errors surfaced by Validate.
var (
	ErrNoSources         = errors.New("at least one source is required")
	ErrSourceMissingName = errors.New("source name is required")
	ErrSourceMissingURL  = errors.New("source url is required")
	ErrUnknownSourceKind = errors.New("source kind must be feed, single_page or paginated")
	ErrMissingRowSel     = errors.New("scrape sources require a row selector")
	ErrBadCutoffDate     = errors.New("ingest.cutoff_date must be YYYY-MM-DD")
)

// SourceKind selects the adapter used for a source.
type SourceKind string

const (
	KindFeed       SourceKind = "feed"
	KindSinglePage SourceKind = "single_page"
	KindPaginated  SourceKind = "paginated"
)

// Config holds all settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Extractor ExtractorConfig `yaml:"extractor"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   []Source        `yaml:"sources"`
}

// DatabaseConfig locates the sqlite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig describes the read-API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// IngestConfig tunes the coordinator.
type IngestConfig struct {
	Workers    int           `yaml:"workers"`
	PageDelay  time.Duration `yaml:"pageDelay"`
	RunTimeout time.Duration `yaml:"runTimeout"`
	Interval   time.Duration `yaml:"interval"`
	CutoffDate string        `yaml:"cutoffDate"`
	UserAgent  string        `yaml:"userAgent"`
}

// Cutoff parses the configured cutoff date; Validate guarantees it parses.
func (c IngestConfig) Cutoff() time.Time {
	t, _ := time.Parse("2006-01-02", c.CutoffDate)
	return t
}

// ExtractorConfig controls the extraction fallback chain.
type ExtractorConfig struct {
	// HeuristicFallback enables the regex extractor when the LLM path is
	// unconfigured or returns nothing. Nil means enabled; with it off and no
	// API key set, every document extracts to zero entities and is filtered
	// out.
	HeuristicFallback *bool `yaml:"heuristicFallback"`
	MaxChars          int   `yaml:"maxChars"`
}

// FallbackEnabled reports whether the heuristic pass should run.
func (c ExtractorConfig) FallbackEnabled() bool {
	return c.HeuristicFallback == nil || *c.HeuristicFallback
}

// LLMConfig defines how to contact the extraction model endpoint.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// LoggingConfig holds the log level string.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Source describes one press-release provider.
type Source struct {
	Name       string         `yaml:"name"`
	Kind       SourceKind     `yaml:"kind"`
	URL        string         `yaml:"url"`
	Historical bool           `yaml:"historical"`
	MaxPages   int            `yaml:"maxPages"`
	Selectors  SelectorConfig `yaml:"selectors"`
	Detail     DetailConfig   `yaml:"detail"`
}

// SelectorConfig isolates per-site markup knowledge so a layout change is a
// config edit, not a code change.
type SelectorConfig struct {
	Row       string `yaml:"row"`
	TitleLink string `yaml:"titleLink"`
	Date      string `yaml:"date"`
	Body      string `yaml:"body"`
}

// DetailConfig enables the follow-up fetch of each item's own page.
type DetailConfig struct {
	Fetch bool   `yaml:"fetch"`
	Body  string `yaml:"body"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. Secrets are read from the environment here and nowhere else.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = merge(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = Default().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(llmKeyEnv); v != "" {
		c.LLM.APIKey = v
	} else if v := os.Getenv(geminiKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, src := range c.Sources {
		if src.Name == "" {
			return ErrSourceMissingName
		}
		if src.URL == "" {
			return fmt.Errorf("source %s: %w", src.Name, ErrSourceMissingURL)
		}
		switch src.Kind {
		case KindFeed:
		case KindSinglePage, KindPaginated:
			if src.Selectors.Row == "" {
				return fmt.Errorf("source %s: %w", src.Name, ErrMissingRowSel)
			}
		default:
			return fmt.Errorf("source %s: %w", src.Name, ErrUnknownSourceKind)
		}
	}
	if _, err := time.Parse("2006-01-02", c.Ingest.CutoffDate); err != nil {
		return fmt.Errorf("%w: %q", ErrBadCutoffDate, c.Ingest.CutoffDate)
	}
	return nil
}

func merge(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}
	if override.Server.Addr != "" {
		base.Server = override.Server
	}
	if override.Ingest.Workers > 0 {
		base.Ingest.Workers = override.Ingest.Workers
	}
	if override.Ingest.PageDelay > 0 {
		base.Ingest.PageDelay = override.Ingest.PageDelay
	}
	if override.Ingest.RunTimeout > 0 {
		base.Ingest.RunTimeout = override.Ingest.RunTimeout
	}
	if override.Ingest.Interval > 0 {
		base.Ingest.Interval = override.Ingest.Interval
	}
	if override.Ingest.CutoffDate != "" {
		base.Ingest.CutoffDate = override.Ingest.CutoffDate
	}
	if override.Ingest.UserAgent != "" {
		base.Ingest.UserAgent = override.Ingest.UserAgent
	}
	if override.Extractor.HeuristicFallback != nil {
		base.Extractor.HeuristicFallback = override.Extractor.HeuristicFallback
	}
	if override.Extractor.MaxChars > 0 {
		base.Extractor.MaxChars = override.Extractor.MaxChars
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	return base
}

// Default returns the built-in configuration covering the stock source set.
func Default() Config {
	govRow := SelectorConfig{
		Row:       ".views-row",
		TitleLink: "a",
		Date:      "time",
	}

	return Config{
		Database: DatabaseConfig{Path: "aml.db"},
		Server:   ServerConfig{Addr: ":3001"},
		Ingest: IngestConfig{
			Workers:    3,
			PageDelay:  time.Second,
			RunTimeout: 30 * time.Minute,
			Interval:   time.Hour,
			CutoffDate: "2025-06-01",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Extractor: ExtractorConfig{
			MaxChars: 4000,
		},
		LLM: LLMConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
			Model:    "gemini-2.0-flash",
		},
		Logging: LoggingConfig{Level: "info"},
		Sources: []Source{
			{
				Name: "DHS",
				Kind: KindFeed,
				URL:  "https://www.dhs.gov/news-releases/rss.xml",
			},
			{
				Name: "FINTRAC",
				Kind: KindFeed,
				URL:  "https://www.fintrac-canafe.gc.ca/rss-eng.xml",
			},
			{
				Name:       "OFAC",
				Kind:       KindPaginated,
				URL:        "https://ofac.treasury.gov/recent-actions",
				Historical: true,
				MaxPages:   150,
				Selectors:  govRow,
			},
			{
				Name:       "US_Treasury",
				Kind:       KindPaginated,
				URL:        "https://home.treasury.gov/news/press-releases",
				Historical: true,
				MaxPages:   150,
				Selectors: SelectorConfig{
					Row:       ".views-row",
					TitleLink: "h3.field-content a, a",
					Date:      "time",
				},
				Detail: DetailConfig{Fetch: true, Body: "div.field-item"},
			},
			{
				Name:       "DOJ",
				Kind:       KindPaginated,
				URL:        "https://www.justice.gov/news",
				Historical: true,
				MaxPages:   20,
				Selectors: SelectorConfig{
					Row:       ".views-row",
					TitleLink: ".views-field-title a",
					Date:      ".views-field-created time",
					Body:      ".views-field-body",
				},
			},
		},
	}
}
