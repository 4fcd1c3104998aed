package stack

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/logger"
)

// Persistent flags registered on the root command.
const (
	FlagDebug     = "debug"
	FlagLogJSON   = "log-json"
	FlagConfigDir = "config-dir"
)

// LoadConfig resolves the configuration of cmd. Flags named by registryKeys
// take precedence over MNEMO_ environment variables, which take precedence
// over config.toml and the defaults.
func LoadConfig(cmd *cobra.Command, registryKeys []string) (*config.Config, string, error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.DefaultFlags, registryKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configDir, nil
}

// NewLogger builds the command logger from the persistent logging flags.
// Logs go to stderr so command output stays pipeable.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	asJSON, _ := cmd.Flags().GetBool(FlagLogJSON)

	return logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(asJSON),
		logger.WithPretty(!asJSON),
		logger.WithWriter(os.Stderr),
	)
}

// OpenForCommand loads the configuration of cmd and opens the stack it
// describes.
func OpenForCommand(cmd *cobra.Command, registryKeys []string) (*Stack, error) {
	cfg, configDir, err := LoadConfig(cmd, registryKeys)
	if err != nil {
		return nil, err
	}
	return Open(cmd.Context(), cfg, configDir, NewLogger(cmd))
}

// AddStackFlags registers the flags every command opening a stack shares.
// The values land in viper through LoadConfig; the targets only satisfy
// cobra.
func AddStackFlags(cmd *cobra.Command) {
	for _, key := range config.StackFlags {
		if key == config.FlagEmbeddingDims {
			var dims uint
			config.AddUintFlag(cmd, config.DefaultFlags, key, &dims)
			continue
		}
		var s string
		config.AddStringFlag(cmd, config.DefaultFlags, key, &s)
	}
}
