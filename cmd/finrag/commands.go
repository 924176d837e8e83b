package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"finrag/internal/domain"
	"finrag/internal/extract"
	"finrag/internal/index"
	"finrag/internal/service"
	"finrag/internal/tui"
)

// addKeyFlags registers the entity-key flags shared by every command
// that targets one filing.
func addKeyFlags(cmd *cobra.Command, ticker *string, filing *string, year *int) {
	cmd.Flags().StringVar(ticker, "ticker", "", "company ticker, e.g. AAPL")
	cmd.Flags().StringVar(filing, "filing", "", "filing type, e.g. 10-K")
	cmd.Flags().IntVar(year, "year", 0, "filing year, e.g. 2023")
}

func newIngestCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
		file           string
		appendMode     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index a filing",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			mode := index.ModeReplace
			if appendMode {
				mode = index.ModeAppend
			}

			var report *service.IngestReport
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				if err := a.docs.Put(ctx, key, string(data)); err != nil {
					return err
				}
				report, err = a.ingestor.IngestText(ctx, key, string(data), mode)
				if err != nil {
					return err
				}
			} else {
				report, err = a.ingestor.IngestEntity(ctx, key, mode)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d chunks, dimension %d (%s)\n",
				report.Key, report.ChunkCount, report.Dimension, mode)
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	cmd.Flags().StringVar(&file, "file", "", "read the filing text from this file instead of the document root")
	cmd.Flags().BoolVar(&appendMode, "append", false, "extend the existing index instead of replacing it")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from an indexed filing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			ans, err := a.answerer.Ask(ctx, key, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
				for _, src := range ans.Sources {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", src)
				}
			}
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	return cmd
}

func newKPIsCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Extract key financial metrics from an indexed filing",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			kpis, err := a.extractor.ExtractKPIs(ctx, key)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(kpis)
			}
			if len(kpis) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No KPIs found.")
				return nil
			}
			for _, k := range kpis {
				val := k.RawValue
				if k.Value != nil {
					val = fmt.Sprintf("%g %s", *k.Value, k.Unit)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %-24s %-12s conf=%.2f  %s\n",
					k.MetricName, val, k.Period, k.Confidence, k.Source)
			}
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func newRisksCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "Summarize risk factors from an indexed filing",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			risks, err := a.extractor.SummarizeRisks(ctx, key)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(risks)
			}
			for _, cat := range domain.RiskCategories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", cat)
				if points := risks[cat]; len(points) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "  (none identified)")
				} else {
					for _, p := range points {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
					}
				}
			}
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a list")
	return cmd
}

func newMemoCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
	)
	cmd := &cobra.Command{
		Use:   "memo",
		Short: "Generate an investment memo from extracted KPIs and risks",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			kpis, err := a.extractor.ExtractKPIs(ctx, key)
			if err != nil {
				return err
			}
			risks, err := a.extractor.SummarizeRisks(ctx, key)
			if err != nil {
				return err
			}

			kpiJSON, err := json.Marshal(kpis)
			if err != nil {
				return fmt.Errorf("encode kpis: %w", err)
			}
			riskJSON, err := json.Marshal(risks)
			if err != nil {
				return fmt.Errorf("encode risks: %w", err)
			}
			memo, err := a.extractor.GenerateMemo(ctx, extract.MemoInput{
				Company: key.Ticker,
				Period:  fmt.Sprintf("%s %d", key.FilingType, key.Year),
				KPIs:    string(kpiJSON),
				Risks:   string(riskJSON),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), memo)
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	return cmd
}

func newAgentCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
		showTrace      bool
	)
	cmd := &cobra.Command{
		Use:   "agent <task>",
		Short: "Run the analysis agent against an indexed filing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			res, runErr := a.orchestrator.Run(ctx, domain.AgentTask{
				Description: strings.Join(args, " "),
				Key:         key,
			})
			if res != nil && showTrace {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%d iterations):\n", res.RunID, res.Iterations)
				for i, step := range res.Trace {
					fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-16s %s\n", i+1, step.Tool, step.OutputSummary)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.FinalText)
			return nil
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print every tool call before the final answer")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		ticker, filing string
		year           int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Interactive Q&A session over one indexed filing",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := entityKey(ticker, filing, year)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Fail fast when nothing is indexed for the key.
			if _, err := a.store.Meta(cmd.Context(), key); err != nil {
				return err
			}

			p := tea.NewProgram(tui.New(a.answerer, key), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	addKeyFlags(cmd, &ticker, &filing, &year)
	return cmd
}
