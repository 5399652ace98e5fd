package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/kocubinski/costor-api/logz"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var log = logz.Logger.With().Str("bench", "statetree").Logger()

func rootCommand() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "statetree-bench",
		Short: "build, benchmark and inspect statetree state commitments",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if metricsAddr == "" {
				return
			}
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					log.Error().Err(err).Msg("metrics server failed")
				}
			}()
		},
	}

	defaultIndexDir := ".statetree"
	if home, err := os.UserHomeDir(); err == nil {
		defaultIndexDir = filepath.Join(home, ".statetree")
	}
	cmd.PersistentFlags().String("index-dir", defaultIndexDir, "directory for tree databases and log files")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	cmd.AddCommand(
		treeCommand(context.Background()),
		genCommand(),
		graphCommand(),
	)
	return cmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}
}
