// Package cli implements the job pipeline worker's command surface: run
// (start the queue loop), enqueue (push a job id for local testing,
// standing in for the out-of-scope submission API), and track (attach a
// live progress view), grounded on the teacher's internal/cli/root.go
// cobra wiring.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Job pipeline worker: fetch, decrypt and mux HLS/MP4 jobs off a shared queue",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to worker.yml (optional; env vars always take precedence)")
}

// Execute runs the root command; the caller (cmd/worker/main.go) is
// responsible for exiting with a non-zero status on error.
func Execute() error {
	return rootCmd.Execute()
}
