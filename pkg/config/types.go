package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Capture     CaptureConfig     `toml:"capture"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Watch       WatchConfig       `toml:"watch"`
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	// Provider is one of sqlite, postgres or memory.
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider is one of sqlite, chromem, chroma or none.
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is hashing or ollama.
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// CaptureConfig holds capture decision policy.
type CaptureConfig struct {
	HighThreshold       int      `toml:"high_threshold,omitempty"`
	LowThreshold        int      `toml:"low_threshold,omitempty"`
	AutoConfirmMinScore int      `toml:"auto_confirm_min_score,omitempty"`
	ConfirmTimeout      string   `toml:"confirm_timeout,omitempty"`
	AutoConfirmTypes    []string `toml:"auto_confirm_types,omitempty"`
	NeverConfirmTypes   []string `toml:"never_confirm_types,omitempty"`

	// RulesFile is a YAML classifier rules override.
	RulesFile string `toml:"rules_file,omitempty"`
}

// RetrievalConfig holds hybrid search settings.
type RetrievalConfig struct {
	SemanticEnabled     bool    `toml:"semantic_enabled"`
	HybridWeight        float64 `toml:"hybrid_weight"`
	SimilarityThreshold float64 `toml:"similarity_threshold,omitempty"`
	Limit               int     `toml:"limit,omitempty"`
	ResultTTL           string  `toml:"result_ttl,omitempty"`
	CacheSize           int     `toml:"cache_size,omitempty"`
	BatchWorkers        int     `toml:"batch_workers,omitempty"`
}

// EventStreamConfig selects where capture decisions are published.
type EventStreamConfig struct {
	// Provider is nop or kafka.
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Ignore   []string `toml:"ignore,omitempty"`
	Debounce string   `toml:"debounce,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// listKey reads and writes a list as comma-separated values.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			*field(c) = SplitList(v)
			return nil
		},
	}
}

// SplitList splits a comma-separated value, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},

	"capture.high_threshold":         intKey("capture.high_threshold", func(c *Config) *int { return &c.Capture.HighThreshold }),
	"capture.low_threshold":          intKey("capture.low_threshold", func(c *Config) *int { return &c.Capture.LowThreshold }),
	"capture.auto_confirm_min_score": intKey("capture.auto_confirm_min_score", func(c *Config) *int { return &c.Capture.AutoConfirmMinScore }),
	"capture.confirm_timeout":        durationKey("capture.confirm_timeout", func(c *Config) *string { return &c.Capture.ConfirmTimeout }),
	"capture.auto_confirm_types":     listKey(func(c *Config) *[]string { return &c.Capture.AutoConfirmTypes }),
	"capture.never_confirm_types":    listKey(func(c *Config) *[]string { return &c.Capture.NeverConfirmTypes }),
	"capture.rules_file":             stringKey(func(c *Config) *string { return &c.Capture.RulesFile }),

	"retrieval.semantic_enabled":     boolKey("retrieval.semantic_enabled", func(c *Config) *bool { return &c.Retrieval.SemanticEnabled }),
	"retrieval.hybrid_weight":        floatKey("retrieval.hybrid_weight", func(c *Config) *float64 { return &c.Retrieval.HybridWeight }),
	"retrieval.similarity_threshold": floatKey("retrieval.similarity_threshold", func(c *Config) *float64 { return &c.Retrieval.SimilarityThreshold }),
	"retrieval.limit":                intKey("retrieval.limit", func(c *Config) *int { return &c.Retrieval.Limit }),
	"retrieval.result_ttl":           durationKey("retrieval.result_ttl", func(c *Config) *string { return &c.Retrieval.ResultTTL }),
	"retrieval.cache_size":           intKey("retrieval.cache_size", func(c *Config) *int { return &c.Retrieval.CacheSize }),
	"retrieval.batch_workers":        intKey("retrieval.batch_workers", func(c *Config) *int { return &c.Retrieval.BatchWorkers }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  listKey(func(c *Config) *[]string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"watch.ignore":   listKey(func(c *Config) *[]string { return &c.Watch.Ignore }),
	"watch.debounce": durationKey("watch.debounce", func(c *Config) *string { return &c.Watch.Debounce }),
}
