package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coslatte/simuci/sim"
	"github.com/coslatte/simuci/sim/stats"
)

var (
	// Shared flags
	logLevel      string // Log verbosity level
	configPath    string // Optional YAML with per-cluster stage distributions
	centroidsPath string // Centroid CSV (one row per cluster, one column per feature)
	seed          int64  // Master seed; negative means non-reproducible
	reps          int    // Replications per patient
	asInt         bool   // Round output values to whole hours

	// run flags: patient profile
	age        int
	diag1      int
	diag2      int
	diag3      int
	diag4      int
	apache     int
	insufResp  int
	ventFlag   int
	icuStay    float64
	vamTime    float64
	preICUStay float64
	outputPath string // Replication table destination ("" = stdout)

	// validate flags
	dataPath   string  // Ground-truth CSV: 11 feature columns + 5 observed outcome columns
	confidence float64 // Coverage confidence level

	// compare flags
	compareColumn string // Outcome variable to compare across result files
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simuci",
	Short: "Discrete-event simulator for post-ICU trajectories of ventilated patients",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging parses and applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig returns the YAML SimConfig or the built-in defaults.
func loadConfig() sim.SimConfig {
	if configPath == "" {
		return sim.DefaultSimConfig()
	}
	cfg, err := sim.LoadSimConfig(configPath)
	if err != nil {
		logrus.Fatalf("Loading sim config: %v", err)
	}
	return cfg
}

// seedOption maps the --seed flag to the runner's optional seed.
func seedOption() *int64 {
	if seed < 0 {
		return nil
	}
	return &seed
}

// runCmd replicates a single patient and writes the result table as CSV.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run replications for one patient and emit the result table",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		replicator, err := sim.NewReplicator(loadConfig(), sim.NewAssigner(centroidsPath))
		if err != nil {
			logrus.Fatalf("Building replicator: %v", err)
		}

		profile := sim.PatientProfile{
			Age:                      age,
			DiagnosisAdmission1:      diag1,
			DiagnosisAdmission2:      diag2,
			DiagnosisAdmission3:      diag3,
			DiagnosisAdmission4:      diag4,
			Apache:                   apache,
			RespiratoryInsufficiency: insufResp,
			ArtificialVentilation:    ventFlag,
			ICUStay:                  icuStay,
			VAMTime:                  vamTime,
			PreICUStay:               preICUStay,
		}

		batch, err := replicator.Replicate(profile, sim.ReplicateOptions{
			Reps:  reps,
			Seed:  seedOption(),
			AsInt: asInt,
		})
		if err != nil {
			logrus.Fatalf("Replication failed: %v", err)
		}

		if err := writeBatchCSV(batch, outputPath); err != nil {
			logrus.Fatalf("Writing result table: %v", err)
		}
		logrus.Infof("Run %s: %d replications in cluster %d", batch.RunID, batch.NumRows(), batch.Cluster)
	},
}

// validateCmd batch-simulates every patient of a ground-truth CSV and prints
// the validation report.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Simulate every patient of a ground-truth table and validate the output",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		profiles, trueData, err := loadGroundTruth(dataPath)
		if err != nil {
			logrus.Fatalf("Loading ground truth: %v", err)
		}

		replicator, err := sim.NewReplicator(loadConfig(), sim.NewAssigner(centroidsPath))
		if err != nil {
			logrus.Fatalf("Building replicator: %v", err)
		}

		result, err := replicator.ReplicateAll(profiles, sim.ReplicateOptions{
			Reps: reps,
			Seed: seedOption(),
		}, nil)
		if err != nil {
			logrus.Fatalf("Batch simulation failed: %v", err)
		}

		metrics, err := stats.NewSimulationMetrics(trueData, result.SimData(), sim.VariableNames)
		if err != nil {
			logrus.Fatalf("Building metrics: %v", err)
		}
		report, err := metrics.Evaluate(stats.EvaluateOptions{
			ConfidenceLevel: confidence,
			Seed:            seedOption(),
		})
		if err != nil {
			logrus.Fatalf("Evaluation failed: %v", err)
		}

		printReport(os.Stdout, report)
	},
}

// compareCmd runs Wilcoxon (two files) or Friedman (three or more) over one
// outcome column of replication-result CSVs.
var compareCmd = &cobra.Command{
	Use:   "compare <result.csv> <result.csv> [more.csv...]",
	Short: "Compare experiment scenarios with Wilcoxon or Friedman rank tests",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		samples := make([][]float64, len(args))
		for i, path := range args {
			col, err := readResultColumn(path, compareColumn)
			if err != nil {
				logrus.Fatalf("Reading %s: %v", path, err)
			}
			samples[i] = col
		}

		label := fmt.Sprintf("%s over %d scenarios", compareColumn, len(samples))
		var result stats.ComparisonResult
		var err error
		if len(samples) == 2 {
			result, err = stats.Wilcoxon(label, samples[0], samples[1])
		} else {
			result, err = stats.Friedman(label, samples)
		}
		if err != nil {
			logrus.Fatalf("Comparison failed: %v", err)
		}

		fmt.Printf("=== Scenario Comparison ===\n")
		fmt.Printf("Label     : %s\n", result.Label)
		fmt.Printf("Statistic : %.4f\n", result.Statistic)
		fmt.Printf("p-value   : %.4f\n", result.PValue)
	},
}

// writeBatchCSV writes the replication table to path, or stdout when empty.
func writeBatchCSV(batch *sim.ReplicationBatch, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(batch.Columns); err != nil {
		return err
	}
	record := make([]string, len(batch.Columns))
	for _, row := range batch.Rows {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readResultColumn reads one named column from a replication-result CSV.
func readResultColumn(path, name string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("result file has no data rows")
	}
	col := -1
	for j, h := range records[0] {
		if h == name {
			col = j
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found, file has %v", name, records[0])
	}
	out := make([]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", i, name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// loadGroundTruth reads the observed patient table: a header row, then one
// row per patient with the 11 clustering features followed by the 5 observed
// outcome variables.
func loadGroundTruth(path string) ([]sim.PatientProfile, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("ground-truth file has no data rows")
	}

	const wantCols = 11 + sim.NumVariables
	profiles := make([]sim.PatientProfile, 0, len(records)-1)
	trueData := make([][]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != wantCols {
			return nil, nil, fmt.Errorf("row %d has %d columns, want %d", i, len(rec), wantCols)
		}
		fields := make([]float64, wantCols)
		for j, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			fields[j] = v
		}
		profiles = append(profiles, sim.PatientProfile{
			Age:                      int(fields[0]),
			DiagnosisAdmission1:      int(fields[1]),
			DiagnosisAdmission2:      int(fields[2]),
			DiagnosisAdmission3:      int(fields[3]),
			DiagnosisAdmission4:      int(fields[4]),
			Apache:                   int(fields[5]),
			RespiratoryInsufficiency: int(fields[6]),
			ArtificialVentilation:    int(fields[7]),
			ICUStay:                  fields[8],
			VAMTime:                  fields[9],
			PreICUStay:               fields[10],
		})
		trueData = append(trueData, fields[11:])
	}
	return profiles, trueData, nil
}

// printReport displays the validation report.
func printReport(w io.Writer, r *stats.ValidationResult) {
	fmt.Fprintln(w, "=== Validation Report ===")
	fmt.Fprintln(w, "Coverage (%):")
	for _, name := range sim.VariableNames {
		fmt.Fprintf(w, "  %-10s : %.1f\n", name, r.CoveragePercent[name])
	}
	fmt.Fprintf(w, "RMSE (hours) : %.2f\n", r.RMSE)
	fmt.Fprintf(w, "MAE (hours)  : %.2f\n", r.MAE)
	fmt.Fprintf(w, "MAPE (%%)     : %.2f\n", r.MAPE)
	fmt.Fprintln(w, "Kolmogorov-Smirnov:")
	for _, name := range sim.VariableNames {
		ks := r.KSPerVariable[name]
		fmt.Fprintf(w, "  %-10s : D=%.4f p=%.4f\n", name, ks.Statistic, ks.PValue)
	}
	fmt.Fprintf(w, "  %-10s : D=%.4f p=%.4f\n", "overall", r.KSOverall.Statistic, r.KSOverall.PValue)
	fmt.Fprintln(w, "Anderson-Darling:")
	for _, name := range sim.VariableNames {
		ad := r.ADPerVariable[name]
		fmt.Fprintf(w, "  %-10s : T=%.4f sig=%.4f\n", name, ad.Statistic, ad.SignificanceLevel)
	}
	fmt.Fprintf(w, "  %-10s : T=%.4f sig=%.4f\n", "overall", r.ADOverall.Statistic, r.ADOverall.SignificanceLevel)
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file with per-cluster stage distributions (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&centroidsPath, "centroids", "centroids.csv", "Centroid CSV path for cluster assignment")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Master seed for reproducible runs (negative = non-reproducible)")
	rootCmd.PersistentFlags().IntVar(&reps, "reps", 100, "Number of replications per patient")

	// Patient profile
	runCmd.Flags().IntVar(&age, "age", 60, "Patient age in years")
	runCmd.Flags().IntVar(&diag1, "diag1", 0, "Admission diagnosis code 1")
	runCmd.Flags().IntVar(&diag2, "diag2", 0, "Admission diagnosis code 2")
	runCmd.Flags().IntVar(&diag3, "diag3", 0, "Admission diagnosis code 3")
	runCmd.Flags().IntVar(&diag4, "diag4", 0, "Admission diagnosis code 4")
	runCmd.Flags().IntVar(&apache, "apache", 15, "APACHE II score")
	runCmd.Flags().IntVar(&insufResp, "insuf-resp", 0, "Respiratory insufficiency code")
	runCmd.Flags().IntVar(&ventFlag, "vent", 1, "Artificial ventilation flag")
	runCmd.Flags().Float64Var(&icuStay, "icu-stay", 500, "Expected ICU stay in hours (VAM upper bound)")
	runCmd.Flags().Float64Var(&vamTime, "vam-time", 0, "Expected ventilation time in hours")
	runCmd.Flags().Float64Var(&preICUStay, "pre-icu-stay", 0, "Pre-ICU stay time in hours")
	runCmd.Flags().BoolVar(&asInt, "as-int", true, "Round output values to whole hours")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Result CSV path (default: stdout)")

	validateCmd.Flags().StringVar(&dataPath, "data", "", "Ground-truth CSV: 11 feature columns + 5 observed outcomes")
	validateCmd.Flags().Float64Var(&confidence, "confidence", 0.95, "Coverage confidence level in (0, 1)")

	compareCmd.Flags().StringVar(&compareColumn, "column", "vam", "Outcome variable to compare across result files")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compareCmd)
}
