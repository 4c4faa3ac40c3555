package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/growthsim/internal/config"
	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
	"github.com/san-kum/growthsim/internal/storage"
	"github.com/san-kum/growthsim/internal/sweep"
	"github.com/san-kum/growthsim/internal/viz"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newExperiment(cfg *config.Config) (*experiment.Experiment, error) {
	exp := experiment.New(cfg.Experiment())
	exp.SetLogger(logger)

	if populationFile != "" {
		f, err := os.Open(populationFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		pop, err := storage.ReadPopulationCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read population: %w", err)
		}
		exp.UsePopulation(pop)
		logger.Info("using population file", "path", populationFile, "size", len(pop))
	}
	return exp, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	exp, err := newExperiment(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("simulating %d scenarios over %d steps...\n", len(cfg.Scenarios), cfg.Simulation.Steps)
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := repo.Save(storage.RunMetadata{Preset: preset, Config: exp.Config()}, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n\n", runID)

	return printSummary(result)
}

func printSummary(result *experiment.Result) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tTREATED\tT MEAN\tC MEAN\tGAP\tFINAL D\tPEAK D\tCLAMPED")

	for _, sr := range result.Scenarios {
		res := sr.Result
		tMean := meanOf(res.Scores(res.Steps, growth.Treatment))
		cMean := meanOf(res.Scores(res.Steps, growth.Control))

		finalD := math.NaN()
		if len(sr.Effects) > 0 {
			finalD = sr.Effects[len(sr.Effects)-1].D
		}
		peak := "-"
		if p, ok := effect.Peak(sr.Effects); ok {
			peak = fmt.Sprintf("%.3f@t%d", p.D, p.T)
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			sr.Name, sr.Treated,
			fmtFloat(tMean, 2), fmtFloat(cMean, 2), fmtFloat(tMean-cMean, 2),
			fmtFloat(finalD, 3), peak, res.Clamped,
		)
	}
	return w.Flush()
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func fmtFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := newExperiment(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	model, err := viz.NewModel(result).WithTheme(themeName)
	if err != nil {
		return err
	}
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPRESET\tN\tSTEPS\tBOOST\tDECAY\tSEED\tSCENARIOS")

	for _, run := range runs {
		names := make([]string, len(run.Scenarios))
		for i, s := range run.Scenarios {
			names[i] = s.Name
		}
		p := run.Preset
		if p == "" {
			p = "-"
		}
		sim := run.Config.Simulation
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.3f\t%.3f\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			p,
			run.Config.Population.Size,
			sim.Steps,
			sim.Boost,
			sim.DecayRate,
			run.Seed,
			strings.Join(names, ","),
		)
	}

	return w.Flush()
}

type storedRun struct {
	meta    *storage.RunMetadata
	traj    []storage.TrajectoryRow
	effects []storage.EffectRow
}

func loadRun(runID string, withTrajectory bool) (*storedRun, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	run := &storedRun{}
	if run.meta, err = repo.Load(runID); err != nil {
		return nil, err
	}
	if run.effects, err = repo.LoadEffects(runID); err != nil {
		return nil, err
	}
	if withTrajectory {
		if run.traj, err = repo.LoadTrajectory(runID); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// scenarios returns the stored scenario names filtered by --scenario.
func (r *storedRun) scenarios() ([]string, error) {
	var names []string
	for _, s := range r.meta.Scenarios {
		if scenarioName == "" || s.Name == scenarioName {
			names = append(names, s.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("scenario %s not in run %s", scenarioName, r.meta.ID)
	}
	return names, nil
}

func printRunHeader(meta *storage.RunMetadata) {
	sim := meta.Config.Simulation
	fmt.Println(viz.HeaderStyle.Render("run " + meta.ID))
	fmt.Printf("time: %s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Printf("population: n=%d seed=%d\n", meta.Config.Population.Size, meta.Seed)
	fmt.Printf("simulation: steps=%d ceiling=%g boost=%g decay=%g\n\n", sim.Steps, sim.Ceiling, sim.Boost, sim.DecayRate)
}

func showRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], true)
	if err != nil {
		return err
	}
	names, err := run.scenarios()
	if err != nil {
		return err
	}

	printRunHeader(run.meta)

	for _, name := range names {
		fmt.Println(viz.HeaderStyle.Render(name))

		means := effect.GroupMeans(storage.Rows(run.traj, name))
		treated := effect.MeanSeries(means, growth.Treatment)
		control := effect.MeanSeries(means, growth.Control)
		effects := storage.Effects(run.effects, name)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "T\tTREATMENT\tCONTROL\tGAP\tCOHEN'S D")
		for i, e := range effects {
			tm, cm := math.NaN(), math.NaN()
			if e.NTreatment > 0 && i < len(treated) {
				tm = treated[i]
			}
			if e.NControl > 0 && i < len(control) {
				cm = control[i]
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.T, fmtFloat(tm, 2), fmtFloat(cm, 2), fmtFloat(tm-cm, 2), fmtFloat(e.D, 3))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, s := range run.meta.Scenarios {
			if s.Name != name {
				continue
			}
			fmt.Printf("\ntreated: %d  clamped: %d\n", s.Treated, s.Clamped)
			for _, k := range sortedKeys(s.Metrics) {
				fmt.Printf("  %s: %.6f\n", k, s.Metrics[k])
			}
		}
		fmt.Println()
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plotRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], true)
	if err != nil {
		return err
	}
	names, err := run.scenarios()
	if err != nil {
		return err
	}

	printRunHeader(run.meta)
	for _, name := range names {
		means := effect.GroupMeans(storage.Rows(run.traj, name))
		chart := viz.MeansChart(means, name+": group means (red: Treatment, blue: Control)", 70, 12)
		if chart == "" {
			fmt.Printf("%s: no data to plot\n\n", name)
			continue
		}
		fmt.Println(chart)
		fmt.Println()
	}
	return nil
}

func effectRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], false)
	if err != nil {
		return err
	}
	names, err := run.scenarios()
	if err != nil {
		return err
	}

	printRunHeader(run.meta)
	for _, name := range names {
		effects := storage.Effects(run.effects, name)
		if len(effects) == 0 {
			fmt.Printf("%s: no effect sizes\n\n", name)
			continue
		}
		fmt.Println(viz.EffectChart(effects, name+": cohen's d", 70, 10))
		if p, ok := effect.Peak(effects); ok {
			fmt.Printf("peak d = %.3f at t=%d\n", p.D, p.T)
		} else {
			fmt.Println("d undefined at every step")
		}
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	runID := args[0]
	switch table {
	case "trajectory":
		rows, err := repo.LoadTrajectory(runID)
		if err != nil {
			return err
		}
		return storage.WriteTrajectoryCSV(os.Stdout, rows)
	case "effects":
		rows, err := repo.LoadEffects(runID)
		if err != nil {
			return err
		}
		return storage.WriteEffectsCSV(os.Stdout, rows)
	case "population":
		pop, err := repo.LoadPopulation(runID)
		if err != nil {
			return err
		}
		return storage.WritePopulationCSV(os.Stdout, pop)
	default:
		return fmt.Errorf("unknown table: %s (available: trajectory, effects, population)", table)
	}
}

func exportJSON(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0], true)
	if err != nil {
		return err
	}
	return storage.WriteJSON(os.Stdout, storage.BuildExport(*run.meta, run.traj, run.effects, withRows))
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tN\tSTEPS\tBOOST\tDECAY\tCEILING")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%d\t%g\t%g\t%g\n",
			name, cfg.Population.Size, cfg.Simulation.Steps,
			cfg.Simulation.Boost, cfg.Simulation.DecayRate, cfg.Simulation.Ceiling)
	}
	return w.Flush()
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = config.ListPresets()
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("%-14s  %-10s  %10s  %10s  %12s  %10s\n", "preset", "scenario", "final_gap", "peak_d", "mastery", "time_ms")
	fmt.Println(strings.Repeat("-", 74))

	for _, name := range names {
		cfg := config.GetPreset(name)
		if cfg == nil {
			fmt.Printf("%-14s  error: unknown preset\n", name)
			continue
		}

		exp := experiment.New(cfg.Experiment())
		exp.SetLogger(logger)

		start := time.Now()
		result, err := exp.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Printf("%-14s  error: %v\n", name, err)
			continue
		}

		for _, sr := range result.Scenarios {
			m := sr.Result.Metrics
			fmt.Printf("%-14s  %-10s  %10s  %10s  %12s  %10.2f\n",
				name, sr.Name,
				fmtFloat(m["final_gap"], 3), fmtFloat(m["peak_effect"], 3), fmtFloat(m["mastery_share"], 3),
				float64(elapsed.Microseconds())/1000)
		}
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	if len(gridSpecs) == 0 {
		return fmt.Errorf("at least one --grid is required (params: %v)", sweep.Params)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	params, ranges, err := sweep.ParseGrid(gridSpecs)
	if err != nil {
		return err
	}
	g, err := sweep.NewGridSearch(params, ranges)
	if err != nil {
		return err
	}
	g.Maximize = maximize
	g.SetLogger(logger)

	ctx, cancel := signalContext()
	defer cancel()

	report, err := g.Search(ctx, cfg.Experiment(), scenarioName, metricName)
	if err != nil {
		return err
	}

	if asJSON {
		return storage.WriteJSON(os.Stdout, report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(params, "\t"))+"\t"+strings.ToUpper(metricName))
	for _, p := range report.Points {
		cols := make([]string, 0, len(params)+1)
		for _, name := range params {
			cols = append(cols, fmt.Sprintf("%g", p.Params[name]))
		}
		if p.Err != "" {
			cols = append(cols, "error: "+p.Err)
		} else {
			cols = append(cols, fmtFloat(p.Value, 4))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if report.Best == nil {
		fmt.Println("\nno valid grid point")
		return nil
	}
	fmt.Printf("\nbest %s = %.4f at", metricName, report.Best.Value)
	for _, name := range params {
		fmt.Printf(" %s=%g", name, report.Best.Params[name])
	}
	fmt.Println()
	return nil
}

func benchSimulator(cmd *cobra.Command, args []string) error {
	sizes := []int{1000, 10000, 100000}
	workerCounts := []int{1, 4}
	const benchSteps = 20

	fmt.Printf("benchmarking simulator (%d steps)\n\n", benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tWORKERS\tROWS\tTIME\tROWS/SEC")

	ctx, cancel := signalContext()
	defer cancel()

	for _, n := range sizes {
		pop, err := growth.GeneratePopulation(n,
			growth.ScoreDistribution{Mean: config.DefaultScoreMean, StdDev: config.DefaultScoreStd, Low: 0, High: config.DefaultCeiling},
			growth.RateDistribution{Mean: config.DefaultRateMean, StdDev: config.DefaultRateStd},
			config.DefaultSeed)
		if err != nil {
			return err
		}
		groups := make(growth.Assignment, n)
		for _, ind := range pop {
			if ind.ID%2 == 0 {
				groups[ind.ID] = growth.Treatment
			}
		}

		for _, wk := range workerCounts {
			simCfg := growth.DefaultConfig()
			simCfg.Steps = benchSteps
			simCfg.Workers = wk

			start := time.Now()
			result, err := growth.New(simCfg).Run(ctx, pop, groups)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			rows := len(result.Rows)
			fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%.0f\n", n, wk, rows, elapsed, float64(rows)/elapsed.Seconds())
		}
	}

	return w.Flush()
}
