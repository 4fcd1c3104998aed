package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MNEMO_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MNEMO_API_LISTEN, MNEMO_STORAGE_SQLITE_PATH, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MNEMO_API_LISTEN, MNEMO_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Capture
	v.SetDefault("capture.high_threshold", d.Capture.HighThreshold)
	v.SetDefault("capture.low_threshold", d.Capture.LowThreshold)
	v.SetDefault("capture.auto_confirm_min_score", d.Capture.AutoConfirmMinScore)
	v.SetDefault("capture.confirm_timeout", d.Capture.ConfirmTimeout)
	v.SetDefault("capture.auto_confirm_types", d.Capture.AutoConfirmTypes)
	v.SetDefault("capture.never_confirm_types", d.Capture.NeverConfirmTypes)
	v.SetDefault("capture.rules_file", d.Capture.RulesFile)

	// Retrieval
	v.SetDefault("retrieval.semantic_enabled", d.Retrieval.SemanticEnabled)
	v.SetDefault("retrieval.hybrid_weight", d.Retrieval.HybridWeight)
	v.SetDefault("retrieval.similarity_threshold", d.Retrieval.SimilarityThreshold)
	v.SetDefault("retrieval.limit", d.Retrieval.Limit)
	v.SetDefault("retrieval.result_ttl", d.Retrieval.ResultTTL)
	v.SetDefault("retrieval.cache_size", d.Retrieval.CacheSize)
	v.SetDefault("retrieval.batch_workers", d.Retrieval.BatchWorkers)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// Watch
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// FromViper resolves every config key through v's precedence chain into a
// Config. Lists accept TOML arrays as well as comma-separated env or flag
// values.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, key := range orderedKeys {
		info := configKeys[key]

		var val string
		if isListKey(key) {
			val = strings.Join(v.GetStringSlice(key), ",")
		} else {
			val = v.GetString(key)
		}

		if val == "" {
			continue
		}
		if err := info.set(cfg, val); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func isListKey(key string) bool {
	switch key {
	case "capture.auto_confirm_types", "capture.never_confirm_types",
		"eventstream.brokers", "watch.ignore":
		return true
	}
	return false
}
