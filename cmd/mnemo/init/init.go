// Package initcmder provides the init command for initializing a local
// .mnemo directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

const configFile = "config.toml"

const fetchTimeout = 10 * time.Second

const initLongDesc string = `Initialize a new .mnemo/ directory in the current working directory.

Creates a local .mnemo/ directory that takes precedence over the default
~/.mnemo/ directory for configuration, the memory database, recall state
and other mnemo operations. A config.toml with default values is written
unless one already exists.

Use --preset to start from a named preset or from a config.toml served at a
URL. A preset always overwrites the existing config.toml.

Presets:
  local       SQLite storage, sqlite-vec vectors and hashing embeddings
  ollama      local defaults with Ollama embeddings
  postgres    PostgreSQL storage with an embedded chromem vector store

Examples:
  mnemo init
  mnemo init --preset ollama
  mnemo init --preset https://example.com/team/mnemo.toml`

const initShortDesc string = "Initialize a local .mnemo/ directory"

type initCommander struct {
	preset string
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir, err := dotdir.NewManager().InitLocal(cwd)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, configFile)

	switch {
	case c.preset == "":
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
			return nil
		}
		if err := save(dir, config.NewDefaultConfig()); err != nil {
			return err
		}

	case isURL(c.preset):
		var data []byte
		err := cliui.Step(c.out, "Fetching "+c.preset, func() error {
			var err error
			data, err = fetch(ctx, c.preset)
			return err
		})
		if err != nil {
			return err
		}
		if _, err := config.ParseConfigTOML(data); err != nil {
			return fmt.Errorf("parsing remote config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

	default:
		cfg, err := config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
		if err := save(dir, cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "  %s Initialized .mnemo directory: %s\n", cliui.SuccessMark, dir)
	return nil
}

func save(dir string, cfg *config.Config) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return cfger.SaveConfig(cfg)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}
	return data, nil
}
