package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/joestump/bmrk/internal/config"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/popup"
	"github.com/joestump/bmrk/internal/tui"
)

func newPopupCmd() *cobra.Command {
	var (
		local bool
		url   string
		title string
	)
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Open the bookmark popup in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(local)
			if err != nil {
				return err
			}
			log, err := logger.ToFile(cfg.Log.Level, popupLogPath(cfg))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			deps, err := openClient(cmd.Context(), cfg, local, log)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			ctrl := popup.New(popup.Deps{
				Service: deps.svc,
				Cache:   deps.cache,
				Bus:     deps.bus,
				Log:     log.Named("popup"),
			})
			defer ctrl.Unmount()

			var active *string
			if url != "" {
				active = &url
			}
			var signIn string
			if !local {
				signIn = cfg.DataService.URL + "/auth/login"
			}
			app := tui.NewApp(tui.AppParams{Controller: ctrl, ActiveURL: active, ActiveTitle: title, SignInURL: signIn})
			_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "open the data service in-process from db settings")
	cmd.Flags().StringVar(&url, "url", "", "URL of the active page")
	cmd.Flags().StringVar(&title, "title", "", "title of the active page")
	return cmd
}

func popupLogPath(cfg *config.Config) string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bmrk-popup.log")
	}
	dir = filepath.Join(dir, "bmrk")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "popup.log")
}
