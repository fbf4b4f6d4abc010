package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"HPAI_Vaccination_ITS_Project/internal/analysis"
	"HPAI_Vaccination_ITS_Project/internal/config"
	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/logger"
	"HPAI_Vaccination_ITS_Project/internal/outbreak"
	"HPAI_Vaccination_ITS_Project/internal/report"
	"HPAI_Vaccination_ITS_Project/internal/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string
	var listRuns bool

	flagSet := pflag.NewFlagSet("hpai-its", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML configuration file")
	flagSet.StringSlice("input", nil, "outbreak report CSV files (overrides input.paths)")
	flagSet.String("output", "", "directory for CSV and YAML reports (overrides output.dir)")
	flagSet.String("log-level", "", "debug, info, warn or error (overrides logging.level)")
	flagSet.String("db", "", "SQLite database path (overrides storage.db_path)")
	flagSet.Bool("no-storage", false, "do not persist the run")
	flagSet.BoolVar(&listRuns, "list-runs", false, "list stored runs and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	// 1. Load configuration
	cfg, err := config.Load(configPath, flagSet)
	if err != nil {
		return err
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if listRuns {
		return printRuns(cfg.Storage.DBPath)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	}

	// 2. Read outbreak reports
	var rows []outbreak.RawRow
	for _, path := range cfg.Input.Paths {
		r, err := outbreak.ReadCSVFile(path)
		if err != nil {
			return err
		}
		logger.Info("Read %d rows from %s", len(r), path)
		rows = append(rows, r...)
	}

	// 3. Normalize into UTC events
	norm := outbreak.NewNormalizer(outbreak.Columns{
		Date:      cfg.Input.DateColumn,
		Group:     cfg.Input.CountryColumn,
		Species:   cfg.Input.SpeciesColumn,
		Latitude:  cfg.Input.LatitudeColumn,
		Longitude: cfg.Input.LongitudeColumn,
	}, cfg.Input.DateLayouts).Normalize(rows)
	for _, pe := range norm.Skipped {
		logger.Debug("Skipped %v", pe)
	}
	if n := len(norm.Skipped); n > 0 {
		logger.Warn("Skipped %d of %d rows", n, len(rows))
	}

	// 4. Run the analysis
	acfg, err := analysisConfig(cfg)
	if err != nil {
		return err
	}
	acfg.CreatedAt = time.Now().UTC()
	rep, err := analysis.Run(norm, acfg)
	if err != nil {
		return err
	}

	// 5. Persist the run
	if cfg.Storage.Enabled {
		store, err := storage.New(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		if err := store.SaveReport(rep); err != nil {
			return err
		}
		logger.Info("Run %s saved to %s", rep.RunID, cfg.Storage.DBPath)
	}

	// 6. Write report files
	paths, err := report.WriteAll(cfg.Output.Dir, rep)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("Wrote %s", p)
	}

	if failed := rep.Failed(); len(failed) == len(rep.Results) {
		return fmt.Errorf("all %d comparisons failed", len(failed))
	}
	return nil
}

func analysisConfig(cfg *config.Config) (analysis.Config, error) {
	start, end, err := cfg.Analysis.Window()
	if err != nil {
		return analysis.Config{}, err
	}
	w, err := epoch.NewWindow(start, end)
	if err != nil {
		return analysis.Config{}, err
	}

	species := cfg.Analysis.Species
	if len(species) == 0 {
		species = outbreak.DefaultSpecies
	}
	regions := outbreak.DefaultRegions
	if len(cfg.Analysis.Regions) > 0 {
		regions = outbreak.Regions(cfg.Analysis.Regions)
	}

	acfg := analysis.Config{Window: w, Species: species, Regions: regions}
	for _, c := range cfg.Analysis.Comparisons {
		acfg.Comparisons = append(acfg.Comparisons, analysis.Comparison{
			Name:         c.Name,
			Treatment:    c.Treatment,
			Controls:     c.Controls,
			Region:       c.Region,
			ControlLabel: c.ControlLabel,
		})
	}
	return acfg, nil
}

func printRuns(dbPath string) error {
	store, err := storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  window %s..%s  events %d (%d kept, %d skipped)  comparisons %d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.WindowStart.Format("2006-01-02"), r.WindowEnd.Format("2006-01-02"),
			r.Events, r.Filtered, r.Skipped, r.Comparisons)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `hpai-its: interrupted time series analysis of HPAI outbreaks around a
vaccination campaign.

Reads outbreak report CSVs, compares monthly counts of a treatment country
against pooled controls before and during the campaign window, fits a
segmented regression to both and reports the difference in differences.

Usage:
  hpai-its [flags]

Examples:
  hpai-its --config configs/config.yaml
  hpai-its --input data/europe.csv --output results --no-storage
  HPAI_ITS_ANALYSIS_WINDOW_START=2023-10-01 hpai-its --input data/europe.csv

Flags:
%s`, strings.TrimRight(flagSet.FlagUsages(), "\n")+"\n")
}
