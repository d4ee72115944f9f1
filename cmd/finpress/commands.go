package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/seenimoa/finpress/internal/article"
	"github.com/seenimoa/finpress/internal/financial"
	"github.com/seenimoa/finpress/internal/formatter"
	"github.com/seenimoa/finpress/internal/sentiment"
	"github.com/seenimoa/finpress/pkg/models"
)

var errUsage = errors.New("invalid arguments")

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [company_name]",
	Short: "Fetch the market snapshot of a company",
	Long: `Resolve a company name (or ticker) to its B3 symbol and print the
normalized market snapshot. Without an argument the configured default
company is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.Financial.DefaultCompany
		if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
			name = strings.TrimSpace(args[0])
		} else {
			log.Info().Str("company", name).Msg("no company name given, using default")
		}

		retries, _ := cmd.Flags().GetInt("retries")
		if retries <= 0 {
			retries = cfg.Financial.MaxRetries
		}
		delay := cfg.Financial.RetryDelay
		if cmd.Flags().Changed("delay") {
			delay, _ = cmd.Flags().GetDuration("delay")
		}

		c := wire(cmd.Context())
		rec, err := c.Extractor.FetchWithRetry(cmd.Context(), name, retries, delay)
		if err != nil {
			return fail(err, notFoundDoc(name, err))
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	fetchCmd.Flags().Int("retries", 0, "attempts before giving up (default: financial.max_retries)")
	fetchCmd.Flags().Duration("delay", 0, "pause between attempts (default: financial.retry_delay)")
}

func notFoundDoc(company string, err error) map[string]string {
	doc := map[string]string{"company_name": company}
	if errors.Is(err, financial.ErrNotFound) {
		doc["error"] = fmt.Sprintf("Não foi possível obter dados para %q", company)
		doc["suggestion"] = "Verifique se o nome da empresa está correto ou tente usar o ticker diretamente"
	} else {
		doc["error"] = err.Error()
	}
	return doc
}

// --- Sentiment Command ---

var sentimentCmd = &cobra.Command{
	Use:   "sentiment <company_name> [limit] [symbol] [financial_json]",
	Short: "Score recent news sentiment for a company",
	Args:  cobra.RangeArgs(1, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parseSentimentArgs(args)
		if err != nil {
			return fail(err, map[string]string{"error": err.Error(), "company_name": args[0]})
		}
		rec := wire(cmd.Context()).Analyzer.Analyze(cmd.Context(), req)
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

// parseSentimentArgs maps the positional arguments onto a request. A
// malformed financial_json is ignored.
func parseSentimentArgs(args []string) (sentiment.Request, error) {
	req := sentiment.Request{CompanyName: strings.TrimSpace(args[0]), Limit: sentiment.DefaultLimit}
	if req.CompanyName == "" {
		return req, fmt.Errorf("%w: company_name is required", errUsage)
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil || n <= 0 {
			return req, fmt.Errorf("%w: limit must be a positive integer, got %q", errUsage, args[1])
		}
		req.Limit = n
	}
	if len(args) > 2 {
		req.Symbol = strings.TrimSpace(args[2])
	}
	if len(args) > 3 {
		req.Financial = parseFinancialJSON(args[3])
	}
	return req, nil
}

func parseFinancialJSON(s string) *models.FinancialRecord {
	var rec models.FinancialRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed financial_json")
		return nil
	}
	if rec.IsEmpty() {
		return nil
	}
	return &rec
}

// --- Article Command ---

var articleCmd = &cobra.Command{
	Use:   "article <input_json>",
	Short: "Write the article for a prepared input",
	Long: `Write the market article for an input object with company_name,
financial and sentiment. The article is model-written when an LLM provider
is configured and falls back to the fixed template otherwise.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fail(errUsage, articleErrorDoc("Argumentos inválidos", "Uso: finpress article <input_json>"))
		}
		in, err := formatter.FormatJSON([]byte(args[0]))
		if err != nil {
			return fail(err, articleErrorDoc(err.Error(), "Dados de entrada inválidos"))
		}

		rec := wire(cmd.Context()).Generator.Generate(cmd.Context(), *in)
		if rec.GeneratedBy == models.GeneratedByError {
			return fail(errors.New(rec.Error), rec)
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func articleErrorDoc(msg, content string) map[string]string {
	return map[string]string{
		"error":   msg,
		"title":   article.ErrorTitle,
		"content": content,
	}
}

// --- Prepare Command ---

var prepareCmd = &cobra.Command{
	Use:   "prepare [input] [output]",
	Short: "Normalize an input file into a prepared article input",
	Long: `Read one JSON or YAML object, normalize it the same way the article
command does and save it as indented JSON. Paths default to
prepare.input_file and prepare.output_file (env INPUT_FILE / OUTPUT_FILE).`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := cfg.Prepare.InputFile, cfg.Prepare.OutputFile
		if len(args) > 0 {
			input = args[0]
		}
		if len(args) > 1 {
			output = args[1]
		}
		if output == "" {
			output = formatter.DefaultOutputFile
		}

		in, err := formatter.Prepare(input, output)
		if err != nil {
			return fail(err, map[string]string{"error": err.Error(), "input_file": input})
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"output_file":  output,
			"company_name": in.CompanyName,
			"symbol":       in.Symbol,
		})
	},
}

// --- Run Command ---

var runCmd = &cobra.Command{
	Use:   "run <company_name> [limit]",
	Short: "Run the full pipeline for a company",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		company := strings.TrimSpace(args[0])
		limit := sentiment.DefaultLimit
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				err = fmt.Errorf("%w: limit must be a positive integer, got %q", errUsage, args[1])
				return fail(err, map[string]string{"error": err.Error(), "company_name": company})
			}
			limit = n
		}

		res, err := wire(cmd.Context()).Pipeline().Run(cmd.Context(), company, limit)
		if err != nil {
			return fail(err, notFoundDoc(company, err))
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// --- Compose Command ---

var composeCmd = &cobra.Command{
	Use:   "compose <input_json>",
	Short: "Echo an input document as pretty JSON",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fail(errUsage, map[string]string{
				"error": "Argumentos inválidos",
				"usage": "finpress compose <input_json>",
			})
		}
		doc, err := decodeVerbatim(args[0])
		if err != nil {
			return fail(err, map[string]string{"error": "Erro ao decodificar JSON: " + err.Error()})
		}
		return printJSON(cmd.OutOrStdout(), doc)
	},
}

// decodeVerbatim decodes s keeping numbers exactly as written.
func decodeVerbatim(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}
