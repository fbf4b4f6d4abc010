package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HPAI_Vaccination_ITS_Project/internal/config"
	"HPAI_Vaccination_ITS_Project/internal/report"
	"HPAI_Vaccination_ITS_Project/internal/storage"
)

// writeReports writes 18 months of France and Germany reports starting
// 2022-10, dated dd.mm.yyyy as in the EFSA export, plus one bad row.
func writeReports(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Country,observation date,Species,Latitude,Longitude\n")
	start := time.Date(2022, time.October, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 18; i++ {
		m := start.AddDate(0, i, 0)
		fr := 6 + i%4
		if i >= 12 {
			fr = 1 + i%2
		}
		for j := 0; j < fr; j++ {
			fmt.Fprintf(&b, "France,%s,Duck,44.0,0.5\n", m.AddDate(0, 0, j).Format("02.01.2006"))
		}
		for j := 0; j < 9+i%3; j++ {
			fmt.Fprintf(&b, "Germany,%s,Chicken,,\n", m.AddDate(0, 0, j).Format("02.01.2006"))
		}
	}
	b.WriteString("France,sometime,Duck,,\n")

	path := filepath.Join(dir, "europe.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeReports(t, dir)
	out := filepath.Join(dir, "results")
	db := filepath.Join(dir, "runs.db")

	err := run([]string{"--input", input, "--output", out, "--db", db, "--log-level", "error"})
	require.NoError(t, err)

	for _, name := range []string{report.SeriesFile, report.PeriodStatsFile, report.TestsFile,
		report.RegressionFile, report.SeasonalFile, report.SummaryFile} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	store, err := storage.New(db)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Skipped)

	s, _, err := store.LoadSeries(runs[0].ID, "france-vs-europe", "France")
	require.NoError(t, err)
	assert.Equal(t, 18, s.Len())
	assert.Equal(t, 6, s.Counts[0])
}

func TestRun_NoStorage(t *testing.T) {
	dir := t.TempDir()
	input := writeReports(t, dir)
	db := filepath.Join(dir, "never.db")

	err := run([]string{"--input", input, "--output", filepath.Join(dir, "out"), "--db", db,
		"--no-storage", "--log-level", "error"})
	require.NoError(t, err)

	_, err = os.Stat(db)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_InvalidConfig(t *testing.T) {
	// no input files
	err := run([]string{"--log-level", "error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.paths")
}

func TestRun_AllComparisonsFail(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
analysis:
  comparisons:
    - treatment: Atlantis
`)
	input := writeReports(t, dir)
	err := run([]string{"--config", path, "--input", input, "--output", filepath.Join(dir, "out"),
		"--no-storage", "--log-level", "error"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 comparisons failed")
}

func TestAnalysisConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
analysis:
  window_start: "2023-10-01"
  window_end: "2024-10-01"
  regions:
    France: West
    Germany: West
  comparisons:
    - name: fr-west
      treatment: France
      region: West
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)

	acfg, err := analysisConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC), acfg.Window.Start)
	assert.NotEmpty(t, acfg.Species)
	assert.Equal(t, "West", acfg.Regions.Of("Germany"))
	require.Len(t, acfg.Comparisons, 1)
	assert.Equal(t, "West", acfg.Comparisons[0].Region)
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
