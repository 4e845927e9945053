package main

import (
	"fmt"

	"github.com/cwbudde/diffevolve/internal/server"
	"github.com/cwbudde/diffevolve/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the optimization job server",
	Long:  `Serves the JSON + SSE job API for running optimizations in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runStore, err := store.NewFSStore(serveDataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}

		srv := server.NewServer(serveAddr, runStore)
		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for run persistence")
	rootCmd.AddCommand(serveCmd)
}
