package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/config"
	"github.com/joestump/bmrk/internal/db"
	"github.com/joestump/bmrk/internal/handler"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the data service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			oidcProvider, err := auth.NewProvider(ctx, cfg)
			if err != nil {
				return err
			}

			sessionManager := auth.NewSessionManager(database, cfg.DB.Driver, cfg.SessionLifetime, cfg.InsecureCookies)
			userStore := store.NewUserStore(database)
			tokenStore := auth.NewSQLTokenStore(database)
			issuer := auth.NewIssuer(tokenStore, cfg.TokenLifetime, cfg.RefreshLifetime)
			authHandlers := auth.NewHandlers(oidcProvider, sessionManager, userStore, issuer, cfg.Auth.RedirectTo, log.Named("auth"))

			router := handler.NewRouter(handler.Deps{
				SessionManager: sessionManager,
				AuthHandlers:   authHandlers,
				Issuer:         issuer,
				TokenStore:     tokenStore,
				BookmarkStore:  store.NewBookmarkStore(database),
				TagStore:       store.NewTagStore(database),
				UsageStore:     store.NewUsageStore(database),
				UserStore:      userStore,
				Log:            log.Named("api"),
			})

			log.Info("data service listening", logger.String("addr", cfg.HTTP.Addr))
			return listen(ctx, &http.Server{Addr: cfg.HTTP.Addr, Handler: router}, log)
		},
	}
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", logger.String("addr", srv.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
