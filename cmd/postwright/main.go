package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var configPath string
	root := &cobra.Command{
		Use:           "postwright",
		Short:         "postwright: LinkedIn posts and infographics from topics and reels, on a budget",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: built-in defaults plus environment)")

	root.AddCommand(
		newServeCmd(&configPath),
		newCostsCmd(&configPath),
		newBudgetCmd(&configPath),
		newLogsCmd(&configPath),
		newPostsCmd(&configPath),
		newCacheCmd(&configPath),
		newMCPCmd(&configPath),
		newTopCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
