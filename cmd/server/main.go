// Package main provides the seolab command: the SEO Lab HTTP API server and a
// one-shot generation tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seolab",
	Short: "SEO Lab API server",
	Long:  "SEO Lab generates SEO blog articles and metadata with a sequential crew of LLM agents, served over HTTP.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
