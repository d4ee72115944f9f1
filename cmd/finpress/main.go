// FinPress: financial content pipeline for B3-listed companies.
//
// Main CLI entrypoint using cobra command framework. Every command prints a
// JSON document to stdout; logs go to stderr.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/internal/logger"
	"github.com/seenimoa/finpress/internal/pipeline"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config, loaded before every command.
var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		writeFailure(os.Stdout, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finpress",
	Short: "FinPress: financial articles from market data and news sentiment",
	Long: `FinPress fetches market data for a Brazilian listed company, scores
recent news sentiment and writes a Portuguese market article. Each stage
falls back to a deterministic path when its upstream is unavailable.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		logger.Setup(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(sentimentCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"name":    "finpress",
			"version": version,
			"commit":  commit,
			"built":   date,
		})
	},
}

// --- Output helpers ---

// failure carries the JSON document printed when a command fails.
type failure struct {
	doc any
	err error
}

func (f *failure) Error() string {
	if f.err != nil {
		return f.err.Error()
	}
	return "command failed"
}

func (f *failure) Unwrap() error { return f.err }

func fail(err error, doc any) error {
	return &failure{doc: doc, err: err}
}

// writeFailure prints the failure document, or {"error": ...} for errors
// raised outside a command body.
func writeFailure(w io.Writer, err error) {
	var f *failure
	if errors.As(err, &f) && f.doc != nil {
		_ = printJSON(w, f.doc)
		return
	}
	_ = printJSON(w, map[string]string{"error": err.Error()})
}

// printJSON writes v as 2-space indented JSON without HTML escaping, so
// Portuguese text and article markup stay readable.
func printJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// wire builds the stage components from the loaded config.
func wire(ctx context.Context) *pipeline.Components {
	return pipeline.Wire(ctx, cfg)
}
