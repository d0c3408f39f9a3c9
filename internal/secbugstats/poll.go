package secbugstats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bugzilla-contrib/jbtools/internal/config"
)

// PollResult maps each category to the count it returned.
type PollResult map[string]int

// Poll runs every category query, archives the raw JSON response next
// to the counts and records each count in the stats schema. In debug
// mode st may be nil and no SQL runs; the archive files are still
// written so the queries can be inspected.
func Poll(ctx context.Context, client *Client, st *StatsDB, cfg *config.Poll) (PollResult, error) {
	now := time.Now()
	stamp := now.Format("200601021504")

	result := PollResult{}
	for _, cat := range Categories {
		fmt.Printf("Fetching %s\n", cat.Key)

		count, raw, err := client.CountBugs(ctx, cat.Query)
		if err != nil {
			return result, fmt.Errorf("fetch %s: %w", cat.Key, err)
		}

		archive := filepath.Join(cfg.OutDir, stamp+"_"+cat.Key+".json")
		if err := os.WriteFile(archive, raw, 0o644); err != nil {
			return result, fmt.Errorf("archive %s: %w", cat.Key, err)
		}

		if !cfg.Debug {
			if err := st.InsertStat(ctx, cat.Key, count, now); err != nil {
				return result, err
			}
		}
		result[cat.Key] = count
	}
	return result, nil
}
