// Command lspframe exercises the LSP base-protocol transport: it echoes
// framed messages over any supported medium, inspects framed streams and
// frames raw payloads.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gossip-lsp/lspframe/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string

	level  slog.LevelVar
	logger *slog.Logger
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "lspframe",
		Short: "LSP base-protocol framing toolkit",
		Long: `lspframe speaks the LSP base protocol (Content-Length framed messages).

Use it to run an echo peer over stdio, TCP, Unix sockets, named pipes,
WebSocket or Node.js IPC, to inspect captured streams, or to frame a
payload by hand.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "settings file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		echoCmd(g),
		inspectCmd(),
		frameCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lspframe: %s\n", err)
		os.Exit(1)
	}
}

// setup installs the stderr logger. Stdout may carry the protocol stream,
// so nothing else is ever logged there.
func (g *globals) setup() error {
	g.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &g.level}))
	slog.SetDefault(g.logger)
	if g.logLevel == "" {
		return nil
	}
	l, err := config.ParseLevel(g.logLevel)
	if err != nil {
		return err
	}
	g.level.Set(l)
	return nil
}

// loadSettings reads the settings file, if any, and keeps the log level in
// sync with it when the file changes. The returned stop function ends the
// watch.
func (g *globals) loadSettings() (*config.Store[config.Settings], func(), error) {
	defaults := config.DefaultSettings()
	if g.configPath == "" {
		return config.NewStore(defaults), func() {}, nil
	}
	settings, err := config.Load(g.configPath, defaults)
	if err != nil {
		return nil, nil, err
	}
	store := config.NewStore(settings)
	g.applyLevel(settings)
	store.OnChange(func(_, next *config.Settings) {
		g.applyLevel(next)
		g.logger.Info("settings reloaded", "path", g.configPath, "log_level", next.LogLevel)
	})

	reloader := config.NewReloader(store, g.configPath, defaults)
	w, err := config.NewWatcher(g.configPath, func() {
		if err := reloader.Reload(); err != nil {
			g.logger.Warn("settings reload failed", "path", g.configPath, "error", err)
		}
	}, config.WithWatcherLogger(g.logger))
	if err != nil {
		g.logger.Warn("settings will not be hot-reloaded", "path", g.configPath, "error", err)
		return store, func() {}, nil
	}
	return store, func() { w.Close() }, nil
}

// applyLevel follows the settings file unless --log-level was given.
func (g *globals) applyLevel(s *config.Settings) {
	if g.logLevel != "" {
		return
	}
	g.level.Set(s.Level())
}
