package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/diffevolve/internal/config"
	"github.com/cwbudde/diffevolve/internal/fit"
	"github.com/cwbudde/diffevolve/internal/opt"
	"github.com/cwbudde/diffevolve/internal/report"
	"github.com/cwbudde/diffevolve/internal/stocbias"
	"github.com/cwbudde/diffevolve/internal/store"
	"github.com/cwbudde/diffevolve/internal/univar"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	problem    string
	nvars      int
	popSize    int
	overInit   int
	minTrades  int
	maxEvals   int
	maxBadGen  int
	mutateDev  float64
	pcross     float64
	pclimb     float64
	seed       int64
	dataDir    string
	saveRecord bool
	withStats  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot optimization",
	Long:  `Runs one optimization of a named problem and prints the best parameters found.`,
	RunE:  runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration (flags override file values)")
	runCmd.Flags().StringVar(&problem, "problem", "sphere", "Problem to optimize (see 'diffevolve problems')")
	runCmd.Flags().IntVar(&nvars, "nvars", 2, "Number of variables")
	runCmd.Flags().IntVar(&popSize, "pop", 20, "Population size")
	runCmd.Flags().IntVar(&overInit, "overinit", 0, "Extra initial candidates")
	runCmd.Flags().IntVar(&minTrades, "mintrades", 1, "Initial trial threshold")
	runCmd.Flags().IntVar(&maxEvals, "max-evals", 1000000, "Safety cap on initial evaluations")
	runCmd.Flags().IntVar(&maxBadGen, "max-bad-gen", 50, "Stagnant generations before stopping")
	runCmd.Flags().Float64Var(&mutateDev, "mutate-dev", 0.8, "Differential mutation deviation")
	runCmd.Flags().Float64Var(&pcross, "pcross", 0.5, "Crossover probability")
	runCmd.Flags().Float64Var(&pclimb, "pclimb", 0.2, "Hill-climbing probability")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for saved runs")
	runCmd.Flags().BoolVar(&saveRecord, "save", false, "Persist the run record under the data directory")
	runCmd.Flags().BoolVar(&withStats, "stats", false, "Collect initialization statistics")

	rootCmd.AddCommand(runCmd)
}

// runSettings resolves the config file (if any) layered under explicit flags.
func runSettings(cmd *cobra.Command) (config.Run, error) {
	run := config.Default()

	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return run, err
		}
		run = loaded
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("problem", func() { run.Problem = problem })
	set("nvars", func() { run.NVars = nvars })
	set("pop", func() { run.PopSize = popSize })
	set("overinit", func() { run.OverInit = overInit })
	set("mintrades", func() { run.MinTrades = minTrades })
	set("max-evals", func() { run.MaxEvals = maxEvals })
	set("max-bad-gen", func() { run.MaxBadGen = maxBadGen })
	set("mutate-dev", func() { run.MutateDev = mutateDev })
	set("pcross", func() { run.PCross = pcross })
	set("pclimb", func() { run.PClimb = pclimb })
	set("seed", func() { run.Seed = seed })

	if err := run.Validate(); err != nil {
		return run, err
	}
	return run, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	run, err := runSettings(cmd)
	if err != nil {
		return err
	}

	prob, err := fit.Lookup(run.Problem, run.NVars)
	if err != nil {
		return err
	}

	slog.Info("Starting optimization",
		"problem", prob.Name, "nvars", prob.NVars, "nints", prob.NInts,
		"pop", run.PopSize, "overinit", run.OverInit, "pclimb", run.PClimb)

	criterion := prob.Criterion
	var collector *stocbias.Collector
	if withStats {
		collector = stocbias.New()
		criterion = collector.Wrap(criterion)
	}

	reporter := report.New()

	cfg := opt.Config{
		Criterion:  criterion,
		NVars:      prob.NVars,
		NInts:      prob.NInts,
		PopSize:    run.PopSize,
		OverInit:   run.OverInit,
		MinTrades:  run.MinTrades,
		MaxEvals:   run.MaxEvals,
		MaxBadGen:  run.MaxBadGen,
		MutateDev:  run.MutateDev,
		PCross:     run.PCross,
		PClimb:     run.PClimb,
		LowBounds:  prob.Low,
		HighBounds: prob.High,
		Seed:       run.Seed,
		Line:       univar.NewSearcher(),
		Reporter:   reporter,
		OnProgress: func(p opt.Progress) {
			if p.Improved || p.Generation%25 == 0 {
				slog.Info("Generation",
					"generation", p.Generation, "best", p.BestFitness,
					"worst", p.Worst, "avg", p.Avg, "evals", p.Evals)
			}
		},
	}
	if collector != nil {
		cfg.Bias = collector
	}

	start := time.Now()
	result, err := opt.Run(cfg)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	slog.Info("Optimization complete",
		"elapsed", elapsed,
		"best_fitness", result.Fitness,
		"optimum", prob.Optimum,
		"generations", result.Generations,
		"evals", result.Evals,
		"init_aborted", result.InitAborted,
	)
	if result.ReportErr != nil {
		slog.Warn("Correlation report failed", "error", result.ReportErr)
	}
	if collector != nil {
		snap := collector.Snapshot()
		slog.Info("Initialization statistics",
			"evals", snap.Evals, "failures", snap.Failures,
			"best", snap.Best, "worst", snap.Worst, "mean", snap.Mean)
	}

	if saveRecord {
		runStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		jobID := uuid.New().String()
		record := store.NewRunRecord(jobID, result.Params, result.Fitness,
			result.Generations, result.Evals, store.JobConfig{
				Problem:   run.Problem,
				NVars:     run.NVars,
				NInts:     prob.NInts,
				PopSize:   run.PopSize,
				OverInit:  run.OverInit,
				MinTrades: run.MinTrades,
				MaxEvals:  run.MaxEvals,
				MaxBadGen: run.MaxBadGen,
				MutateDev: run.MutateDev,
				PCross:    run.PCross,
				PClimb:    run.PClimb,
				Seed:      run.Seed,
			})
		if err := runStore.SaveRecord(jobID, record); err != nil {
			return fmt.Errorf("failed to save run record: %w", err)
		}
		fmt.Printf("Saved run %s\n", jobID)
	}

	fmt.Printf("Best fitness %.6f after %d generations (%d evals, %s)\n",
		result.Fitness, result.Generations, result.Evals, elapsed.Round(time.Millisecond))
	for i, v := range result.Params {
		fmt.Printf("  x[%d] = %.6f\n", i, v)
	}

	return nil
}
