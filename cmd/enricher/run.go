package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/app"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	flags := &settingsFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich the input CSV with a competitor column",
		Example: `  GOOGLE_API_KEY=... GOOGLE_CSE_ID=... GEMINI_API_KEY=... \
    enricher run --competitor CyberArk --input features.csv --output features_cyberark.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := app.Run(cmd.Context(), cfg, o.logger); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "All done! Updated CSV with '%s' column is written to %s.\n", cfg.Competitor, cfg.Output)
			return err
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
