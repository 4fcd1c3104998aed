// Package configcmder provides the config command for managing persistent
// mnemo configuration stored in the .mnemo/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent mnemo configuration.

Configuration is stored as config.toml in the .mnemo/ directory and provides
default values for command flags. CLI flags and MNEMO_ environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen, client.api_target,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  capture.high_threshold, capture.low_threshold, capture.auto_confirm_min_score,
  capture.confirm_timeout, capture.auto_confirm_types, capture.never_confirm_types,
  capture.rules_file,
  retrieval.semantic_enabled, retrieval.hybrid_weight, retrieval.similarity_threshold,
  retrieval.limit, retrieval.result_ttl, retrieval.cache_size, retrieval.batch_workers,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  watch.ignore, watch.debounce

List values are comma-separated.

Use subcommands to get, set, or list configuration values:
  mnemo config set <key> <value>    Set a configuration value
  mnemo config get <key>            Get a configuration value
  mnemo config list                 List all configuration values

Examples:
  mnemo config set embedding.provider ollama
  mnemo config set capture.auto_confirm_types bug_fix,solution_design
  mnemo config get storage.provider
  mnemo config list`

const configShortDesc string = "Manage persistent mnemo configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
