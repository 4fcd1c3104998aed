// Package servecmder provides the serve command, which runs the REST API and
// MCP server over a local memory stack.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	mnemomcp "github.com/papercomputeco/mnemo/api/mcp"
	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

type serveCommander struct {
	listen   string
	debounce string
	watch    bool
	root     string

	logger *slog.Logger
}

const serveLongDesc string = `Run the mnemo server.

Serves the REST API under /v1 and the MCP server at /mcp from one local
memory stack. With --watch, file changes in the project are captured in the
background as well.

Use "mnemo serve mcp" to speak MCP over stdio instead, for assistants that
launch their tools as subprocesses.

Examples:
  mnemo serve
  mnemo serve --listen :9000 --watch
  mnemo serve --storage-provider postgres --postgres-dsn postgres://localhost/mnemo`

const serveShortDesc string = "Run the mnemo API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := append([]string{config.FlagAPIListenStandalone, config.FlagDebounce}, config.StackFlags...)
			cfg, configDir, err := stack.LoadConfig(cmd, keys)
			if err != nil {
				return err
			}
			cmder.logger = stack.NewLogger(cmd)

			s, err := stack.Open(cmd.Context(), cfg, configDir, cmder.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			return cmder.run(cmd.Context(), s)
		},
	}

	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagDebounce, &cmder.debounce)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Capture file changes in the project while serving")
	cmd.Flags().StringVar(&cmder.root, "root", ".", "Project root to watch with --watch")
	stack.AddStackFlags(cmd)

	cmd.AddCommand(newMCPCmd())

	return cmd
}

func (c *serveCommander) run(ctx context.Context, s *stack.Stack) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	var pool *worker.Pool
	watcherDone := make(chan struct{})
	if c.watch {
		w, p, err := s.Watch(c.root, nil)
		if err != nil {
			return err
		}
		pool = p

		go func() {
			defer close(watcherDone)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
		c.logger.Info("watching project", "root", c.root)
	} else {
		p, err := worker.NewPool(&worker.Config{Memory: s.Memory, Logger: c.logger})
		if err != nil {
			return fmt.Errorf("creating capture pool: %w", err)
		}
		pool = p
		close(watcherDone)
	}

	// The watcher enqueues into the pool, so it stops first.
	defer func() {
		cancel()
		<-watcherDone
		pool.Close()
	}()

	mcpServer, err := mnemomcp.NewServer(mnemomcp.Config{
		Memory:     s.Memory,
		Classifier: s.Classifier,
		Ranges:     s.Ranges,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: s.Config.API.Listen,
		Classifier: s.Classifier,
		Ranges:     s.Ranges,
		Retrieval:  s.Retrieval,
		Pool:       pool,
		MCP:        mcpServer.Handler(),
	}, s.Memory, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		_ = apiServer.Shutdown()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return apiServer.Shutdown()
	}
}
