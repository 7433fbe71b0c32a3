package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joestump/bmrk/internal/agent"
	"github.com/joestump/bmrk/internal/config"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/manifest"
)

func newAgentCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the background agent the browser shim talks to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(local)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			m, err := manifest.Load(cfg.Agent.Manifest)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := openClient(ctx, cfg, local, log)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			a := agent.New(agent.Deps{
				Service:    deps.svc,
				Bus:        deps.bus,
				Manifest:   m,
				Cache:      deps.cache,
				BadgeClear: cfg.Agent.BadgeClear,
				Log:        log.Named("agent"),
			})
			a.Installed(ctx)

			log.Info("agent listening", logger.String("addr", cfg.Agent.Addr), logger.String("manifest", m.Name))
			return listen(ctx, &http.Server{Addr: cfg.Agent.Addr, Handler: agent.NewRouter(a)}, log)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "open the data service in-process from db settings")
	return cmd
}
