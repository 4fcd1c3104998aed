// Package vectorutils builds the configured vector driver.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/chroma"
	"github.com/papercomputeco/mnemo/pkg/vector/chromem"
	"github.com/papercomputeco/mnemo/pkg/vector/sqlitevec"
)

const (
	ProviderSQLite  = "sqlite"
	ProviderChromem = "chromem"
	ProviderChroma  = "chroma"
	ProviderNone    = "none"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// Target is a database path for sqlite, a directory for chromem (empty
	// keeps it in memory) or a server URL for chroma.
	Target     string
	Dimensions uint
	Logger     *slog.Logger
}

// NewVectorDriver returns the driver for o.ProviderType. ProviderNone yields
// a nil driver: embeddings are then kept only on records.
func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderNone, "":
		return nil, nil
	case ProviderSQLite:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
			Logger:     o.Logger,
		})
	case ProviderChromem:
		return chromem.NewDriver(chromem.Config{
			Path:     o.Target,
			Compress: true,
			Logger:   o.Logger,
		})
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{URL: o.Target}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
