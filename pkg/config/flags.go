package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on "mnemo capture", "mnemo search" and "mnemo serve").
type Flag struct {
	// Name is the long flag name (e.g. "api-target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.api_target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPITarget       = "api-target"
	FlagStorageProv     = "storage-provider"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagEventProv       = "eventstream-provider"
	FlagEventTopic      = "eventstream-topic"
	FlagRulesFile       = "rules"
	FlagDebounce        = "debounce"

	// The standalone API server uses "listen" as the flag name.
	FlagAPIListenStandalone = "api-listen-standalone"
)

// StackFlags are the flags every command that opens a local memory stack
// registers.
var StackFlags = []string{
	FlagStorageProv,
	FlagSQLite,
	FlagPostgresDSN,
	FlagVectorStoreProv,
	FlagVectorStoreTgt,
	FlagEmbeddingProv,
	FlagEmbeddingTgt,
	FlagEmbeddingModel,
	FlagEmbeddingDims,
	FlagEventProv,
	FlagEventTopic,
	FlagRulesFile,
}

// DefaultFlags is the registry shared by mnemo commands.
var DefaultFlags = FlagSet{
	FlagAPIListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:           {Name: "api-target", Shorthand: "", ViperKey: "client.api_target", Description: "mnemo API server URL"},
	FlagStorageProv:         {Name: "storage-provider", ViperKey: "storage.provider", Description: "Storage provider (sqlite, postgres, memory)"},
	FlagSQLite:              {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .mnemo/mnemo.sqlite)"},
	FlagPostgresDSN:         {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagVectorStoreProv:     {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (sqlite, chromem, chroma, none)"},
	FlagVectorStoreTgt:      {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store target (file path or URL)"},
	FlagEmbeddingProv:       {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (hashing, ollama)"},
	FlagEmbeddingTgt:        {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:      {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:       {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagEventProv:           {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Capture event publisher (nop, kafka)"},
	FlagEventTopic:          {Name: "eventstream-topic", ViperKey: "eventstream.topic", Description: "Topic capture events are published to"},
	FlagRulesFile:           {Name: "rules", ViperKey: "capture.rules_file", Description: "YAML file overriding classifier rules"},
	FlagDebounce:            {Name: "debounce", ViperKey: "watch.debounce", Description: "Quiet period before a changed file is captured"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
