package secbugstats

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bugzilla-contrib/jbtools/internal/config"
)

// weights score each severity for the risk index.
var weights = map[string]int{
	"sg_critical": 5,
	"sg_high":     4,
	"sg_moderate": 2,
	"sg_low":      1,
}

// StatsDB wraps the MySQL stats schema (secbugs_Stats holds the
// per-category counts, secbugs_Details the per-product/component
// breakdown).
type StatsDB struct {
	db *sql.DB
}

// OpenStats connects to the stats database.
func OpenStats(dsn string) (*StatsDB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping stats database: %w", err)
	}
	return &StatsDB{db: db}, nil
}

// Close releases the connection pool.
func (s *StatsDB) Close() error {
	return s.db.Close()
}

// InsertStat records one category count.
func (s *StatsDB) InsertStat(ctx context.Context, category string, count int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secbugs_Stats (category, count, date) VALUES (?, ?, ?)`,
		category, count, at.Format("2006-01-02 15:04"))
	if err != nil {
		return fmt.Errorf("insert stat %s: %w", category, err)
	}
	return nil
}

// Point is the risk index of one team on one date.
type Point struct {
	Date time.Time
	Risk int
}

// TeamSeries is one team's risk history.
type TeamSeries struct {
	Name   string
	Points []Point
}

// Last returns the most recent risk index, 0 for an empty series.
func (s TeamSeries) Last() int {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Risk
}

// RiskSeries computes the weighted risk index for every team at every
// recorded date after since. Each team's filter is a SQL condition over
// the secbugs_Details columns (typically product/component matches).
// The returned series are sorted by most recent risk, smallest first,
// which is the stacking order of the chart.
func (s *StatsDB) RiskSeries(ctx context.Context, since time.Time, teams []config.Team) ([]TeamSeries, error) {
	dates, err := s.detailDates(ctx, since)
	if err != nil {
		return nil, err
	}

	series := make([]TeamSeries, len(teams))
	for i, team := range teams {
		series[i].Name = team.Name
		for _, date := range dates {
			risk, err := s.riskIndex(ctx, date, team.Filter)
			if err != nil {
				return nil, fmt.Errorf("risk index for %s on %s: %w", team.Name, date, err)
			}
			at, err := time.Parse("2006-01-02", date)
			if err != nil {
				return nil, fmt.Errorf("bad detail date %q: %w", date, err)
			}
			series[i].Points = append(series[i].Points, Point{Date: at, Risk: risk})
		}
	}

	sort.SliceStable(series, func(i, j int) bool { return series[i].Last() < series[j].Last() })
	return series, nil
}

func (s *StatsDB) detailDates(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT DATE(date) FROM secbugs_Details WHERE date > ? ORDER BY date`,
		since.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list detail dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan detail date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// riskIndex sums severity counts weighted by the scoring rubric. The
// team filter is trusted configuration, not user input, so it is
// interpolated rather than bound.
func (s *StatsDB) riskIndex(ctx context.Context, date, filter string) (int, error) {
	query := fmt.Sprintf(`
		SELECT secbugs_Stats.category, SUM(secbugs_Details.count) AS total
		FROM secbugs_Details
		INNER JOIN secbugs_Stats ON secbugs_Details.sid = secbugs_Stats.sid
		WHERE DATE(secbugs_Details.date) = ?
		  AND secbugs_Stats.category IN ('sg_critical','sg_high','sg_moderate','sg_low')
		  AND (%s)
		GROUP BY secbugs_Stats.category`, filter)

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	risk := 0
	for rows.Next() {
		var category string
		var total int
		if err := rows.Scan(&category, &total); err != nil {
			return 0, err
		}
		risk += weights[category] * total
	}
	return risk, rows.Err()
}
