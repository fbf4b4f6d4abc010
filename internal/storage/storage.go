// Package storage persists analysis runs to SQLite so series and estimates
// can be reloaded and compared across runs.
package storage

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"HPAI_Vaccination_ITS_Project/internal/analysis"
	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/its"
	"HPAI_Vaccination_ITS_Project/internal/periodstats"
	"HPAI_Vaccination_ITS_Project/internal/series"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID          string
	CreatedAt   time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Events      int
	Filtered    int
	Skipped     int
	Comparisons int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/hpai-its/runs.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "hpai-its", "runs.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			created_at      INTEGER NOT NULL,
			window_start    INTEGER NOT NULL,
			window_end      INTEGER NOT NULL,
			events          INTEGER NOT NULL,
			filtered        INTEGER NOT NULL,
			skipped         INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comparisons (
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			treatment       TEXT NOT NULL,
			control         TEXT NOT NULL,
			first_month     TEXT,
			months          INTEGER NOT NULL DEFAULT 0,
			intervention    INTEGER,
			correlation     REAL,
			did_estimate    REAL,
			did_std_err     REAL,
			did_p_value     REAL,
			error           TEXT,
			fit_error       TEXT,
			PRIMARY KEY (run_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS monthly_counts (
			run_id          TEXT NOT NULL,
			comparison      TEXT NOT NULL,
			grp             TEXT NOT NULL,
			month           TEXT NOT NULL,
			epoch           TEXT NOT NULL,
			count           INTEGER NOT NULL,
			PRIMARY KEY (run_id, comparison, grp, month),
			FOREIGN KEY (run_id, comparison) REFERENCES comparisons(run_id, name) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS period_stats (
			run_id          TEXT NOT NULL,
			comparison      TEXT NOT NULL,
			grp             TEXT NOT NULL,
			epoch           TEXT NOT NULL,
			mean            REAL,
			median          REAL,
			std             REAL,
			total           INTEGER NOT NULL,
			months          INTEGER NOT NULL,
			PRIMARY KEY (run_id, comparison, grp, epoch),
			FOREIGN KEY (run_id, comparison) REFERENCES comparisons(run_id, name) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS hypothesis_tests (
			run_id          TEXT NOT NULL,
			comparison      TEXT NOT NULL,
			grp             TEXT NOT NULL,
			method          TEXT NOT NULL,
			statistic       REAL,
			p_value         REAL,
			effect_size     REAL,
			n_a             INTEGER NOT NULL,
			n_b             INTEGER NOT NULL,
			reason          TEXT,
			PRIMARY KEY (run_id, comparison, grp, method),
			FOREIGN KEY (run_id, comparison) REFERENCES comparisons(run_id, name) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS regressions (
			run_id          TEXT NOT NULL,
			comparison      TEXT NOT NULL,
			grp             TEXT NOT NULL,
			coefficient     TEXT NOT NULL,
			estimate        REAL,
			std_err         REAL,
			t_stat          REAL,
			p_value         REAL,
			r_squared       REAL,
			df              INTEGER NOT NULL,
			PRIMARY KEY (run_id, comparison, grp, coefficient),
			FOREIGN KEY (run_id, comparison) REFERENCES comparisons(run_id, name) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport writes a run and all its comparisons in one transaction.
func (s *Storage) SaveReport(r *analysis.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO runs (id, created_at, window_start, window_end, events, filtered, skipped)
		VALUES (?,?,?,?,?,?,?)`,
		r.RunID, r.CreatedAt.UnixNano(), r.Window.Start.UnixNano(), r.Window.End.UnixNano(),
		r.Events, r.Filtered, len(r.Skipped),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	for _, c := range r.Results {
		if err := saveComparison(tx, r.RunID, c); err != nil {
			return fmt.Errorf("failed to save comparison %s: %w", c.Comparison.Name, err)
		}
	}

	return tx.Commit()
}

func saveComparison(tx *sql.Tx, runID string, c *analysis.ComparisonResult) error {
	name := c.Comparison.Name
	control := c.Comparison.ControlLabel
	if c.Pair.Control.Group != "" {
		control = c.Pair.Control.Group
	}

	var first sql.NullString
	var intervention sql.NullInt64
	if c.Pair.Len() > 0 {
		first = sql.NullString{String: c.Pair.First().String(), Valid: true}
	}
	did := its.DiDEffect{Estimate: math.NaN(), StdErr: math.NaN(), PValue: math.NaN()}
	if c.Regression != nil {
		intervention = sql.NullInt64{Int64: int64(c.InterventionIndex), Valid: true}
		if c.Regression.DiD != nil {
			did = *c.Regression.DiD
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO comparisons
			(run_id, name, treatment, control, first_month, months, intervention, correlation,
			 did_estimate, did_std_err, did_p_value, error, fit_error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		runID, name, c.Comparison.Treatment, control, first, c.Pair.Len(), intervention,
		nullFloat(c.Correlation), nullFloat(did.Estimate), nullFloat(did.StdErr), nullFloat(did.PValue),
		errString(c.Err), errString(c.FitErr),
	); err != nil {
		return err
	}
	if !c.OK() {
		return nil
	}

	for _, ms := range []series.MonthlySeries{c.Pair.Treatment, c.Pair.Control} {
		for i, n := range ms.Counts {
			if _, err := tx.Exec(`
				INSERT INTO monthly_counts (run_id, comparison, grp, month, epoch, count)
				VALUES (?,?,?,?,?,?)`,
				runID, name, ms.Group, ms.MonthAt(i).String(), c.Labels[i].String(), n,
			); err != nil {
				return err
			}
		}
	}

	for _, k := range c.Periods.Keys() {
		p := c.Periods[k]
		if _, err := tx.Exec(`
			INSERT INTO period_stats (run_id, comparison, grp, epoch, mean, median, std, total, months)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			runID, name, k.Group, k.Epoch.String(),
			nullFloat(p.Mean), nullFloat(p.Median), nullFloat(p.Std), p.Total, p.MonthCount,
		); err != nil {
			return err
		}
	}

	for _, g := range c.Tests {
		for _, tr := range []periodstats.TestResult{g.MannWhitney, g.Welch} {
			if _, err := tx.Exec(`
				INSERT INTO hypothesis_tests
					(run_id, comparison, grp, method, statistic, p_value, effect_size, n_a, n_b, reason)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				runID, name, g.Group, tr.Method,
				nullFloat(tr.Statistic), nullFloat(tr.PValue), nullFloat(tr.EffectSize),
				tr.NA, tr.NB, tr.Reason,
			); err != nil {
				return err
			}
		}
	}

	if c.Regression == nil {
		return nil
	}
	for _, fit := range []*its.RegressionResult{c.Regression.Treatment, c.Regression.Control} {
		if fit == nil {
			continue
		}
		for _, coef := range fit.Coefficients {
			if _, err := tx.Exec(`
				INSERT INTO regressions
					(run_id, comparison, grp, coefficient, estimate, std_err, t_stat, p_value, r_squared, df)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				runID, name, fit.Group, coef.Name,
				nullFloat(coef.Estimate), nullFloat(coef.StdErr), nullFloat(coef.TStat), nullFloat(coef.PValue),
				nullFloat(fit.RSquared), fit.DF,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListRuns returns all stored runs, newest first.
func (s *Storage) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.created_at, r.window_start, r.window_end, r.events, r.filtered, r.skipped,
		       (SELECT COUNT(*) FROM comparisons c WHERE c.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var ri RunInfo
		var createdNano, startNano, endNano int64
		if err := rows.Scan(&ri.ID, &createdNano, &startNano, &endNano,
			&ri.Events, &ri.Filtered, &ri.Skipped, &ri.Comparisons); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		ri.CreatedAt = time.Unix(0, createdNano).UTC()
		ri.WindowStart = time.Unix(0, startNano).UTC()
		ri.WindowEnd = time.Unix(0, endNano).UTC()
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// LoadSeries rebuilds one group's aligned series and its epoch labels.
func (s *Storage) LoadSeries(runID, comparison, group string) (series.MonthlySeries, []epoch.Epoch, error) {
	rows, err := s.db.Query(`
		SELECT month, epoch, count FROM monthly_counts
		WHERE run_id = ? AND comparison = ? AND grp = ?
		ORDER BY month`, runID, comparison, group)
	if err != nil {
		return series.MonthlySeries{}, nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	out := series.MonthlySeries{Group: group}
	var labels []epoch.Epoch
	for rows.Next() {
		var monthText, epochText string
		var n int
		if err := rows.Scan(&monthText, &epochText, &n); err != nil {
			return out, nil, fmt.Errorf("failed to scan monthly count: %w", err)
		}
		m, err := series.ParseMonth(monthText)
		if err != nil {
			return out, nil, err
		}
		e, err := epoch.Parse(epochText)
		if err != nil {
			return out, nil, err
		}
		if len(out.Counts) == 0 {
			out.First = m
		} else if m != out.Last().Next() {
			return out, nil, fmt.Errorf("series %s/%s/%s: gap before %s", runID, comparison, group, m)
		}
		out.Counts = append(out.Counts, n)
		labels = append(labels, e)
	}
	if err := rows.Err(); err != nil {
		return out, nil, err
	}
	if len(out.Counts) == 0 {
		return out, nil, fmt.Errorf("series not found: run %s comparison %s group %s", runID, comparison, group)
	}
	return out, labels, nil
}

// LoadPeriodStats rebuilds the period table of one comparison.
func (s *Storage) LoadPeriodStats(runID, comparison string) (periodstats.Table, error) {
	rows, err := s.db.Query(`
		SELECT grp, epoch, mean, median, std, total, months FROM period_stats
		WHERE run_id = ? AND comparison = ?`, runID, comparison)
	if err != nil {
		return nil, fmt.Errorf("failed to query period stats: %w", err)
	}
	defer rows.Close()

	table := make(periodstats.Table)
	for rows.Next() {
		var group, epochText string
		var mean, median, std sql.NullFloat64
		var sum periodstats.Summary
		if err := rows.Scan(&group, &epochText, &mean, &median, &std, &sum.Total, &sum.MonthCount); err != nil {
			return nil, fmt.Errorf("failed to scan period stats: %w", err)
		}
		e, err := epoch.Parse(epochText)
		if err != nil {
			return nil, err
		}
		sum.Mean, sum.Median, sum.Std = fromNull(mean), fromNull(median), fromNull(std)
		table[periodstats.Key{Group: group, Epoch: e}] = sum
	}
	return table, rows.Err()
}

// DeleteRun removes a run; cascading deletes remove everything under it.
func (s *Storage) DeleteRun(runID string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// Undefined statistics are stored as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
