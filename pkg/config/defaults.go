package config

const (
	defaultStorageProvider = "sqlite"
	defaultAPIListen       = ":8765"
	defaultClientAPITarget = "http://localhost:8765"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "hashing"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 256

	defaultHighThreshold       = 80
	defaultLowThreshold        = 50
	defaultAutoConfirmMinScore = 60
	defaultConfirmTimeout      = "30s"

	defaultHybridWeight = 0.7
	defaultLimit        = 20
	defaultResultTTL    = "5m"
	defaultCacheSize    = 1000
	defaultBatchWorkers = 5

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "mnemo.captures"

	defaultWatchDebounce = "2s"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Capture: CaptureConfig{
			HighThreshold:       defaultHighThreshold,
			LowThreshold:        defaultLowThreshold,
			AutoConfirmMinScore: defaultAutoConfirmMinScore,
			ConfirmTimeout:      defaultConfirmTimeout,
			AutoConfirmTypes:    []string{"bug_fix", "solution_design"},
		},
		Retrieval: RetrievalConfig{
			SemanticEnabled: true,
			HybridWeight:    defaultHybridWeight,
			Limit:           defaultLimit,
			ResultTTL:       defaultResultTTL,
			CacheSize:       defaultCacheSize,
			BatchWorkers:    defaultBatchWorkers,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Watch: WatchConfig{
			Ignore:   []string{".git/**", "node_modules/**", "vendor/**", ".mnemo/**"},
			Debounce: defaultWatchDebounce,
		},
	}
}
