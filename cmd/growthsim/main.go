package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/growthsim/internal/config"
	"github.com/san-kum/growthsim/internal/logging"
	"github.com/san-kum/growthsim/internal/storage"
	"github.com/san-kum/growthsim/internal/viz"
)

var (
	dataDir  string
	backend  string
	logLevel string
	logger   *slog.Logger

	configFile     string
	preset         string
	populationFile string
	seed           uint64
	size           int
	steps          int
	boost          float64
	decay          float64
	ceiling        float64
	quantile       float64
	workers        int

	scenarioName string
	withRows     bool
	table        string

	gridSpecs  []string
	metricName string
	maximize   bool
	asJSON     bool

	themeName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "growthsim",
		Short:         "learning growth intervention simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger(logLevel, os.Stderr)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".growthsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", storage.BackendFiles, "storage backend (files|sqlite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate every scenario and save the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&populationFile, "population", "", "csv of a pre-generated population (id,initial_score,baseline_rate[,group])")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "simulate and replay the result interactively",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().StringVar(&themeName, "theme", viz.ThemeDefault.Name, fmt.Sprintf("color theme %v", viz.ThemeNames()))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show group means and effect sizes per step",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&scenarioName, "scenario", "", "only this scenario")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot group mean trajectories",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&scenarioName, "scenario", "", "only this scenario")

	effectCmd := &cobra.Command{
		Use:   "effect [run_id]",
		Short: "plot cohen's d over time",
		Args:  cobra.ExactArgs(1),
		RunE:  effectRun,
	}
	effectCmd.Flags().StringVar(&scenarioName, "scenario", "", "only this scenario")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a run table to stdout as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVar(&table, "table", "trajectory", "table to export (trajectory|effects|population)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a run summary to stdout as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().BoolVar(&withRows, "rows", false, "include the full trajectory table")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	initConfigCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "compare outcomes across presets (all when none given)",
		RunE:  comparePresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search over simulation parameters",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "param=range, e.g. boost=0:0.4:0.1 or decay_rate=0.05,0.25 (repeatable)")
	sweepCmd.Flags().StringVar(&scenarioName, "scenario", "targeted", "scenario to score")
	sweepCmd.Flags().StringVar(&metricName, "metric", "final_gap", "metric to optimize")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "maximize instead of minimize")
	sweepCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the simulator",
		Args:  cobra.NoArgs,
		RunE:  benchSimulator,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, showCmd, plotCmd, effectCmd, exportCSVCmd, exportJSONCmd, presetsCmd, initConfigCmd, compareCmd, sweepCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "population seed")
	cmd.Flags().IntVar(&size, "n", config.DefaultSize, "population size")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of time steps")
	cmd.Flags().Float64Var(&boost, "boost", config.DefaultBoost, "initial treatment boost")
	cmd.Flags().Float64Var(&decay, "decay", config.DefaultDecay, "boost decay rate")
	cmd.Flags().Float64Var(&ceiling, "ceiling", config.DefaultCeiling, "mastery ceiling")
	cmd.Flags().Float64Var(&quantile, "quantile", config.DefaultQuantile, "targeting quantile")
	cmd.Flags().IntVar(&workers, "workers", 0, "goroutines per step (0 or 1 runs sequentially)")
}

// resolveConfig layers preset, config file and explicitly set flags, in that
// order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("n") {
		cfg.Population.Size = size
	}
	if flags.Changed("steps") {
		cfg.Simulation.Steps = steps
	}
	if flags.Changed("boost") {
		cfg.Simulation.Boost = boost
	}
	if flags.Changed("decay") {
		cfg.Simulation.DecayRate = decay
	}
	if flags.Changed("ceiling") {
		cfg.Simulation.Ceiling = ceiling
		if cfg.Population.Score.High > ceiling {
			cfg.Population.Score.High = ceiling
		}
	}
	if flags.Changed("quantile") {
		cfg.SetQuantile(quantile)
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers = workers
	}

	return cfg, nil
}

func openRepo() (storage.Repository, error) {
	repo, err := storage.Open(backend, dataDir)
	if err != nil {
		return nil, err
	}
	if err := repo.Init(); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
