package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"finrag/internal/config"
)

var (
	cfgPath string
	cfg     *config.AppConfig
)

func main() {
	root := &cobra.Command{
		Use:           "finrag",
		Short:         "Financial document indexing and retrieval-augmented analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			var err error
			if cfgPath != "" {
				cfg, err = config.Load(cfgPath)
			} else {
				cfg, _, err = config.LoadDefault()
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default: ./config.yaml, then ~/.config/finrag/config.yaml)")

	root.AddCommand(
		newIngestCmd(),
		newAskCmd(),
		newKPIsCmd(),
		newRisksCmd(),
		newMemoCmd(),
		newAgentCmd(),
		newSearchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
