// Package intentcfg loads the call-to-action intent configuration: the
// ordered intent table (key, synonyms, URL) and the separate high-confidence
// trigger table used by the first resolver layer. The file is read once at
// startup and the resulting Config is immutable.
package intentcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
)

// Sentinel errors for configuration validation.
var (
	ErrDanglingTrigger = errors.New("trigger references unknown intent key")
	ErrDuplicateKey    = errors.New("duplicate intent key")
	ErrMissingURL      = errors.New("intent has no url")
	ErrNoSynonyms      = errors.New("intent has no synonyms")
	ErrSynonymCase     = errors.New("synonym is not lowercase")
)

// Trigger is a Layer-1 high-confidence phrase bound to an intent key.
type Trigger struct {
	Phrase string `json:"phrase"`
	Intent string `json:"intent"`
}

// Config is the loaded, validated intent configuration. Records and triggers
// keep file order; the resolver's "first match wins" semantics depend on it.
type Config struct {
	records  []domain.IntentRecord
	triggers []Trigger
	byKey    map[string]domain.IntentRecord
}

// fileSchema is the on-disk JSON shape. Arrays, not maps, so that
// configuration order survives parsing.
type fileSchema struct {
	Intents  []domain.IntentRecord `json:"intents"`
	Triggers []Trigger             `json:"triggers"`
}

// Empty returns a Config with no intents. The resolver never injects a URL
// against it.
func Empty() *Config {
	return &Config{byKey: map[string]domain.IntentRecord{}}
}

// Load reads and validates the intent configuration. A missing file is not an
// error: the service degrades to no URL injection, so Load returns an empty
// Config and the caller decides whether to warn. Any other read, parse, or
// validation failure is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("intentcfg: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw JSON bytes.
func Parse(data []byte) (*Config, error) {
	var raw fileSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("intentcfg: parse: %w", err)
	}

	cfg := &Config{
		records:  raw.Intents,
		triggers: raw.Triggers,
		byKey:    make(map[string]domain.IntentRecord, len(raw.Intents)),
	}

	for _, rec := range raw.Intents {
		if rec.URL == "" {
			return nil, fmt.Errorf("intentcfg: intent %q: %w", rec.Key, ErrMissingURL)
		}
		if len(rec.Synonyms) == 0 {
			return nil, fmt.Errorf("intentcfg: intent %q: %w", rec.Key, ErrNoSynonyms)
		}
		for _, syn := range rec.Synonyms {
			if syn != strings.ToLower(syn) {
				return nil, fmt.Errorf("intentcfg: intent %q synonym %q: %w", rec.Key, syn, ErrSynonymCase)
			}
		}
		if _, dup := cfg.byKey[rec.Key]; dup {
			return nil, fmt.Errorf("intentcfg: %q: %w", rec.Key, ErrDuplicateKey)
		}
		cfg.byKey[rec.Key] = rec
	}

	// A trigger bound to a key absent from the intent table would be a
	// silent no-op at resolve time. Catch it here instead.
	for _, tr := range cfg.triggers {
		if _, ok := cfg.byKey[tr.Intent]; !ok {
			return nil, fmt.Errorf("intentcfg: trigger %q -> %q: %w", tr.Phrase, tr.Intent, ErrDanglingTrigger)
		}
	}

	return cfg, nil
}

// IsEmpty reports whether the config carries no intents.
func (c *Config) IsEmpty() bool { return len(c.records) == 0 }

// Records returns the intent records in configuration order.
func (c *Config) Records() []domain.IntentRecord { return c.records }

// Triggers returns the high-confidence triggers in configuration order.
func (c *Config) Triggers() []Trigger { return c.triggers }

// URLForKey looks up the call-to-action URL for an intent key.
func (c *Config) URLForKey(key string) (string, bool) {
	rec, ok := c.byKey[key]
	return rec.URL, ok
}
