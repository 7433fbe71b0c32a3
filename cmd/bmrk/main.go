package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bmrk",
		Short: "Bookmark It.: save, tag and search bookmarks from the browser",
		Long: "bmrk runs the bookmark data service, the background agent that\n" +
			"saves pages on browser triggers, and a terminal popup.",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newAgentCmd())
	rootCmd.AddCommand(newPopupCmd())
	rootCmd.AddCommand(newSaveCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
