// Package stack opens the local memory stack a command runs against:
// storage, vectors, embeddings, the event publisher and the memory driver
// on top of them, all chosen by configuration.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/mnemo/pkg/embeddings/utils"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eventstream/kafka"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
	"github.com/papercomputeco/mnemo/pkg/git"
	"github.com/papercomputeco/mnemo/pkg/identity"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory/local"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	"github.com/papercomputeco/mnemo/pkg/storage/postgres"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	"github.com/papercomputeco/mnemo/pkg/vector"
	vectorutils "github.com/papercomputeco/mnemo/pkg/vector/utils"
)

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"

	vectorsFile = "vectors.sqlite"
	chromemDir  = "chromem"
)

// Stack is an opened memory stack. Close releases everything it holds.
type Stack struct {
	Config     *config.Config
	Memory     *local.Driver
	Classifier *classify.Classifier
	Ranges     *diffrange.Extractor
	Retrieval  *retrieval.Engine
	Git        *git.Client

	logger *slog.Logger
}

// Open builds the stack described by cfg. configDir overrides the .mnemo
// directory used for default file locations.
func Open(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*Stack, error) {
	log = logger.OrNop(log)
	s := &Stack{
		Config: cfg,
		Git:    git.NewClient(git.Config{Logger: log}),
		logger: log,
	}

	classifier, err := newClassifier(cfg.Capture.RulesFile)
	if err != nil {
		return nil, err
	}
	s.Classifier = classifier

	s.Ranges, err = diffrange.New(diffrange.Config{Provider: s.Git, Logger: log})
	if err != nil {
		return nil, err
	}

	captureConfig, err := newCaptureConfig(cfg.Capture, log)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg.Storage, configDir, log)
	if err != nil {
		return nil, err
	}

	// Everything opened from here on is owned by the memory driver once it
	// exists; until then failures close it by hand.
	var owned []func() error
	fail := func(err error) (*Stack, error) {
		for i := len(owned) - 1; i >= 0; i-- {
			_ = owned[i]()
		}
		return nil, err
	}
	owned = append(owned, store.Close)

	embedder, version, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   int(cfg.Embedding.Dimensions),
		Logger:       log,
	})
	if err != nil {
		return fail(fmt.Errorf("creating embedder: %w", err))
	}
	owned = append(owned, embedder.Close)

	vectors, err := newVectors(cfg, configDir, log)
	if err != nil {
		return fail(fmt.Errorf("creating vector store: %w", err))
	}
	if vectors != nil {
		owned = append(owned, vectors.Close)
	}

	publisher, err := newPublisher(cfg.EventStream, log)
	if err != nil {
		return fail(fmt.Errorf("creating event publisher: %w", err))
	}
	owned = append(owned, publisher.Close)

	resultTTL, err := parseDuration(cfg.Retrieval.ResultTTL)
	if err != nil {
		return fail(fmt.Errorf("invalid retrieval.result_ttl: %w", err))
	}

	s.Retrieval, err = retrieval.NewEngine(retrieval.Config{
		Embedder:            embedder,
		EmbeddingVersion:    version,
		Store:               vectors,
		DisableSemantic:     !cfg.Retrieval.SemanticEnabled,
		HybridWeight:        &cfg.Retrieval.HybridWeight,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		Limit:               cfg.Retrieval.Limit,
		ResultTTL:           resultTTL,
		CacheSize:           cfg.Retrieval.CacheSize,
		BatchWorkers:        cfg.Retrieval.BatchWorkers,
		Logger:              log,
	})
	if err != nil {
		return fail(fmt.Errorf("creating retrieval engine: %w", err))
	}

	s.Memory, err = local.NewDriver(local.Config{
		Store:               store,
		Retrieval:           s.Retrieval,
		Classifier:          classifier,
		Capture:             captureConfig,
		Identity:            identity.NewResolver(identity.Config{Remote: s.Git}),
		Ranges:              s.Ranges,
		Embedder:            embedder,
		EmbeddingVersion:    version,
		EmbeddingDimensions: int(cfg.Embedding.Dimensions),
		Vectors:             vectors,
		Publisher:           publisher,
		Logger:              log,
	})
	if err != nil {
		return fail(fmt.Errorf("creating memory driver: %w", err))
	}

	log.Debug("memory stack opened",
		"storage", cfg.Storage.Provider,
		"vector_store", cfg.VectorStore.Provider,
		"embedding", version,
		"eventstream", cfg.EventStream.Provider,
	)
	return s, nil
}

// Close releases the memory driver and every collaborator it owns.
func (s *Stack) Close() error {
	if s == nil || s.Memory == nil {
		return nil
	}
	return s.Memory.Close()
}

func newClassifier(rulesFile string) (*classify.Classifier, error) {
	if rulesFile == "" {
		return classify.Default(), nil
	}
	rules, err := classify.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}
	return classify.New(rules)
}

func newCaptureConfig(c config.CaptureConfig, log *slog.Logger) (capture.Config, error) {
	timeout, err := parseDuration(c.ConfirmTimeout)
	if err != nil {
		return capture.Config{}, fmt.Errorf("invalid capture.confirm_timeout: %w", err)
	}
	auto, err := record.ParseActivityTypes(c.AutoConfirmTypes)
	if err != nil {
		return capture.Config{}, fmt.Errorf("invalid capture.auto_confirm_types: %w", err)
	}
	never, err := record.ParseActivityTypes(c.NeverConfirmTypes)
	if err != nil {
		return capture.Config{}, fmt.Errorf("invalid capture.never_confirm_types: %w", err)
	}
	return capture.Config{
		HighThreshold:       c.HighThreshold,
		LowThreshold:        c.LowThreshold,
		AutoConfirmMinScore: c.AutoConfirmMinScore,
		AutoConfirmTypes:    auto,
		NeverConfirmTypes:   never,
		Timeout:             timeout,
		Logger:              log,
	}, nil
}

func newStore(ctx context.Context, c config.StorageConfig, configDir string, log *slog.Logger) (storage.Driver, error) {
	switch c.Provider {
	case StorageSQLite, "":
		path, err := ResolveSQLitePath(c.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		d, err := sqlite.NewDriver(ctx, path, log)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		log.Debug("using SQLite storage", "path", path)
		return d, nil

	case StoragePostgres:
		if c.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres provider")
		}
		d, err := postgres.NewDriver(ctx, c.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		log.Debug("using PostgreSQL storage")
		return d, nil

	case StorageMemory:
		log.Debug("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}
}

// newVectors opens the vector store. File-backed providers default to a
// location inside the .mnemo directory.
func newVectors(cfg *config.Config, configDir string, log *slog.Logger) (vector.Driver, error) {
	target := cfg.VectorStore.Target
	provider := cfg.VectorStore.Provider

	if target == "" && (provider == vectorutils.ProviderSQLite || provider == vectorutils.ProviderChromem) {
		dir, err := dotdir.NewManager().Target(configDir)
		if err != nil {
			return nil, err
		}
		if provider == vectorutils.ProviderSQLite {
			target = filepath.Join(dir, vectorsFile)
		} else {
			target = filepath.Join(dir, chromemDir)
		}
	}

	return vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: provider,
		Target:       target,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	})
}

func newPublisher(c config.EventStreamConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case EventStreamNop, "":
		return nop.NewPublisher(), nil
	case EventStreamKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
			Logger:  log,
		})
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", c.Provider)
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
