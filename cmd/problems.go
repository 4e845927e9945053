package main

import (
	"fmt"

	"github.com/cwbudde/diffevolve/internal/fit"
	"github.com/spf13/cobra"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List available problems",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range fit.Names() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}
