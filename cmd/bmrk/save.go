package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joestump/bmrk/internal/agent"
	"github.com/joestump/bmrk/internal/config"
)

func newSaveCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "save URL",
		Short: "Save a page through the running agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(false)
			if err != nil {
				return err
			}
			url := args[0]
			if err := saveViaAgent(cmd.Context(), cfg.Agent.Addr, agent.Tab{URL: &url, Title: title}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bookmark saved.")
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "bookmark title")
	return cmd
}

// saveViaAgent posts an action click for tab to the agent at addr.
func saveViaAgent(ctx context.Context, addr string, tab agent.Tab) error {
	body, err := json.Marshal(tab)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/events/action-clicked", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var er agent.ErrorResponse
	if err := json.Unmarshal(respBody, &er); err == nil && er.Error != "" {
		return fmt.Errorf("save failed (%d): %s", resp.StatusCode, er.Error)
	}
	return fmt.Errorf("save failed (%d): %s", resp.StatusCode, respBody)
}
