package secbugstats

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2011, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestRenderRiskChart(t *testing.T) {
	series := []TeamSeries{
		{Name: "Frontend", Points: []Point{{day(7), 4}, {day(14), 6}, {day(21), 5}}},
		{Name: "DOM", Points: []Point{{day(7), 20}, {day(14), 22}, {day(21), 25}}},
	}

	dir := t.TempDir()
	now := time.Date(2011, 8, 28, 12, 0, 0, 0, time.UTC)
	path, err := RenderRiskChart(series, dir, now)
	if err != nil {
		t.Fatalf("RenderRiskChart: %v", err)
	}
	if filepath.Base(path) != "teamgraph-20110828.png" {
		t.Errorf("path = %q", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart file is empty")
	}
}

func TestRenderRiskChartRejectsEmptyInput(t *testing.T) {
	if _, err := RenderRiskChart(nil, t.TempDir(), time.Now()); err == nil {
		t.Fatal("expected error for empty series")
	}
}

func TestTeamSeriesLast(t *testing.T) {
	empty := TeamSeries{Name: "none"}
	if empty.Last() != 0 {
		t.Errorf("Last of empty series = %d", empty.Last())
	}
	s := TeamSeries{Points: []Point{{day(7), 4}, {day(14), 9}}}
	if s.Last() != 9 {
		t.Errorf("Last = %d, want 9", s.Last())
	}
}
