package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bugzilla-contrib/jbtools/internal/config"
	"github.com/bugzilla-contrib/jbtools/internal/secbugstats"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the historical team risk index chart",
	Long: `Graph computes the weighted risk index for each configured team at
every recorded date and renders the history as a stacked area PNG for
the weekly report. Teams and their SQL filters come from the config
file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.GraphFromViper(v)
		if err != nil {
			return err
		}

		st, err := secbugstats.OpenStats(cfg.DSN)
		if err != nil {
			return err
		}
		defer st.Close()

		series, err := st.RiskSeries(cmd.Context(), cfg.Since, cfg.Teams)
		if err != nil {
			return err
		}

		path, err := secbugstats.RenderRiskChart(series, cfg.OutDir, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	f := graphCmd.Flags()
	f.String("mysql-dsn", "", "MySQL DSN for the stats schema (required)")
	f.String("out-dir", "", "Directory the chart is written to (default: .)")
	f.String("since", "", "Start of the historical window, YYYY-MM-DD (default: 2009-09-01)")
}
