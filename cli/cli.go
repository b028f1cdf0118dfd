// Package cli provides the ezbridge command line.
// It exports Run() and RunWithHooks() so wrapper projects can add commands and native
// modules of their own.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zot/ezbridge/internal/config"
	"github.com/zot/ezbridge/internal/hostabi"
	"github.com/zot/ezbridge/internal/logging"
	"github.com/zot/ezbridge/internal/lua"
	"github.com/zot/ezbridge/internal/proto"
)

// Version is the ezbridge release.
const Version = "0.1.0"

// Hooks allows extending the CLI.
type Hooks struct {
	// Commands are added to the root command.
	Commands []*cobra.Command

	// BeforeStart runs after the host is built and before main.lua, e.g. to Provide
	// services for extra native modules.
	BeforeStart func(h *Host) error

	// CustomVersion returns version info to append (optional).
	CustomVersion func() string
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	root := newRootCommand(hooks)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(hooks *Hooks) *cobra.Command {
	if hooks == nil {
		hooks = &Hooks{}
	}
	root := &cobra.Command{
		Use:           "ezbridge",
		Short:         "Script bridge development host",
		Long:          `ezbridge hosts Lua scripts against a player registry fed by join/leave notifications.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default "+config.DefaultPath+" if present)")
	root.PersistentFlags().CountP("verbose", "v", "verbosity (repeat for more)")

	root.AddCommand(newRunCommand(hooks), newModulesCommand(), newVersionCommand(hooks))
	root.AddCommand(hooks.Commands...)
	return root
}

// loadConfig reads the config file and environment, then applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}

	strFlags := map[string]*string{
		"scripts":      &cfg.Scripts.Dir,
		"storage":      &cfg.Storage.Type,
		"storage-path": &cfg.Storage.Path,
		"storage-url":  &cfg.Storage.URL,
		"seed":         &cfg.Storage.Seed,
		"addr":         &cfg.Server.Addr,
		"feed":         &cfg.Feed.Path,
		"host-version": &cfg.Host.Version,
		"log-level":    &cfg.Logging.Level,
		"log-format":   &cfg.Logging.Format,
	}
	for name, dst := range strFlags {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbosity, _ = flags.GetCount("verbose")
	}
	return cfg, nil
}

func newRunCommand(hooks *Hooks) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scripts against the player registry",
		Long: `Loads <scripts>/main.lua with the ez:* modules available, then applies join/leave
notifications from --feed (a JSON-lines file, "-" for stdin) and from the /feed
websocket when --addr is set. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Sync()

			host, err := NewHost(cfg, log)
			if err != nil {
				return err
			}
			if hooks.BeforeStart != nil {
				if err := hooks.BeforeStart(host); err != nil {
					host.Close(context.Background())
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := host.Start(ctx)
			if err != nil {
				host.Close(context.Background())
				return err
			}
			log.Sugar().Infow("ezbridge running",
				"host_version", host.Layout.Version,
				"scripts", cfg.Scripts.Dir,
				"storage", cfg.Storage.Type,
				"http", addr)

			<-ctx.Done()
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return host.Close(shutdownCtx)
		},
	}
	f := cmd.Flags()
	f.String("scripts", "", "Lua scripts directory")
	f.String("storage", "", "offline store: memory, sqlite or postgresql")
	f.String("storage-path", "", "SQLite database file")
	f.String("storage-url", "", "PostgreSQL connection URL")
	f.String("seed", "", "YAML file of offline players to load at startup")
	f.String("addr", "", "HTTP listen address, e.g. 127.0.0.1:8080")
	f.String("feed", "", `JSON-lines join/leave stream ("-" for stdin)`)
	f.String("host-version", "", "host binary version selecting the offset table")
	f.String("log-level", "", "log level: debug, info, warn, error")
	f.String("log-format", "", "log format: console or json")
	return cmd
}

func newModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List native modules and prototypes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, m := range lua.Modules() {
				fmt.Fprintf(out, "%s\n", m.Name)
				for _, fn := range m.FunctionNames() {
					fmt.Fprintf(out, "  %s\n", fn)
				}
			}
			for _, kind := range proto.Kinds() {
				p, err := proto.Get(kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "prototype %s: %v\n", kind, p.Names())
			}
			return nil
		},
	}
}

func newVersionCommand(hooks *Hooks) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ezbridge v%s (host layouts: %v)\n", Version, hostabi.Versions())
			if hooks.CustomVersion != nil {
				fmt.Fprintln(out, hooks.CustomVersion())
			}
		},
	}
}
