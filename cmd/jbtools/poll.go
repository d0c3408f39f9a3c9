package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bugzilla-contrib/jbtools/internal/config"
	"github.com/bugzilla-contrib/jbtools/internal/secbugstats"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll Bugzilla for open security bug counts by category",
	Long: `Poll runs the tracked category queries against the Bugzilla REST
API, archives each raw JSON response and records the counts in the
stats database. With --debug the archives go to the temp directory and
no SQL runs.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.PollFromViper(v)
		if err != nil {
			return err
		}

		var st *secbugstats.StatsDB
		if !cfg.Debug {
			st, err = secbugstats.OpenStats(cfg.DSN)
			if err != nil {
				return err
			}
			defer st.Close()
		}

		client := secbugstats.NewClient(cfg.BaseURL, cfg.Auth)
		result, err := secbugstats.Poll(cmd.Context(), client, st, cfg)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(result))
		for key := range result {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%-16s %d\n", key, result[key])
		}
		return nil
	},
}

func init() {
	f := pollCmd.Flags()
	f.String("base-url", "", "Bugzilla REST endpoint (required)")
	f.String("auth", "", "Query fragment with credentials or an API key")
	f.String("out-dir", "", "Directory for raw JSON archives")
	f.String("mysql-dsn", "", "MySQL DSN for the stats schema")
	f.Bool("debug", false, "Archive to the temp directory and skip all SQL")
}
