// Package api provides the HTTP API server for capturing and recalling
// development memory.
package api

import (
	"net/http"

	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8765")
	ListenAddr string

	// Classifier backs /v1/classify and /v1/evaluate. Defaults to
	// classify.Default().
	Classifier *classify.Classifier

	// Ranges backs /v1/ranges. Optional.
	Ranges *diffrange.Extractor

	// Retrieval exposes cache statistics. Optional.
	Retrieval *retrieval.Engine

	// Pool accepts async captures. Optional.
	Pool *worker.Pool

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}
