// Package main provides the CLI entry point for localbench, a helper that
// prepares an orchestrator settings file, optionally provisions a local
// testbed, and launches a consensus benchmark run on the operator's machine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benchlabs/localbench/display"
	"github.com/benchlabs/localbench/link"
	"github.com/benchlabs/localbench/settings"
	"github.com/benchlabs/localbench/testbed"
)

const (
	defaultCommittee = 4
	defaultLoad      = 200

	defaultSettingsTemplate = "assets/settings-local.yml"
	defaultSettingsPath     = "assets/settings.yml"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		display.Error("%v", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "localbench",
		Short: "Run consensus benchmarks on a local testbed",
		Long: `Localbench prepares the orchestrator's settings for local execution,
optionally redirects its expected source checkout to your working tree, and
launches a benchmark run where every testbed endpoint resolves to your own
machine instead of cloud instances.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Println(cmd.UsageString())

		return err
	})

	root.AddCommand(newRunCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		committee        int
		loads            []int
		skipUpdate       bool
		skipConfig       bool
		instances        int
		useLocalCode     bool
		setupOnly        bool
		settingsTemplate string
		settingsPath     string
		orchestratorBin  string
		projectRoot      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prepare the local testbed and launch a benchmark run",
		Long: `Materialize the orchestrator settings from the local template, then run
one benchmark per requested load through the external orchestrator.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf(
					"unexpected argument %q (an explicit deploy count takes the form --deploy=N)",
					args[0],
				)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocalBenchmark(cmd.Context(), logger, runConfig{
				committee:        committee,
				loads:            loads,
				skipUpdate:       skipUpdate,
				skipConfig:       skipConfig,
				deploy:           cmd.Flags().Changed("deploy"),
				instances:        instances,
				useLocalCode:     useLocalCode,
				setupOnly:        setupOnly,
				settingsTemplate: settingsTemplate,
				settingsPath:     settingsPath,
				orchestratorBin:  orchestratorBin,
				projectRoot:      projectRoot,
				exec:             testbed.NewExecRunner(),
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&committee, "committee", "c", defaultCommittee,
		"Committee size to deploy")
	flags.VarP(&loadList{values: &loads}, "loads", "l",
		"Load in tx/s to submit (repeatable; one benchmark run per value)")
	flags.BoolVar(&skipUpdate, "skip-update", false,
		"Skip the testbed update before running benchmarks")
	flags.BoolVar(&skipConfig, "skip-config", false,
		"Skip the testbed configuration before running benchmarks")
	flags.IntVarP(&instances, "deploy", "d", 0,
		"Deploy local instances first (--deploy=N for an explicit count, default committee size)")
	flags.BoolVar(&useLocalCode, "use-local-code", false,
		"Point the orchestrator at this working tree instead of a fresh checkout")
	flags.BoolVar(&setupOnly, "setup-only", false,
		"Stop after setup without launching a benchmark")
	flags.StringVar(&settingsTemplate, "settings-template", defaultSettingsTemplate,
		"Path to the local settings template")
	flags.StringVar(&settingsPath, "settings-path", defaultSettingsPath,
		"Path of the settings file consumed by the orchestrator")
	flags.StringVar(&orchestratorBin, "orchestrator-bin", "orchestrator",
		"Orchestrator executable to invoke")
	flags.StringVar(&projectRoot, "project-root", "",
		"Project root to link as local code (default: current directory)")

	// --deploy with no value means "default to committee size".
	flags.Lookup("deploy").NoOptDefVal = "0"

	// Deprecated single-value spelling from the legacy workflow variant.
	// Both flags append to the same slice, so mixing them preserves the
	// order values were given in.
	flags.Var(&loadList{values: &loads}, "load", "Load in tx/s to submit")
	_ = flags.MarkDeprecated("load", "use --loads instead")

	return cmd
}

// loadList accumulates load values into a shared slice. Unlike pflag's
// built-in int slice, repeated use never resets earlier values, so the
// canonical flag and its deprecated alias can share one accumulator.
type loadList struct {
	values *[]int
}

func (l *loadList) String() string {
	parts := make([]string, len(*l.values))
	for i, v := range *l.values {
		parts[i] = strconv.Itoa(v)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

func (l *loadList) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid load %q", part)
		}

		*l.values = append(*l.values, v)
	}

	return nil
}

func (l *loadList) Type() string { return "intSlice" }

// runConfig is built once from the CLI flags and never mutated afterwards.
type runConfig struct {
	committee        int
	loads            []int
	skipUpdate       bool
	skipConfig       bool
	deploy           bool
	instances        int
	useLocalCode     bool
	setupOnly        bool
	settingsTemplate string
	settingsPath     string
	orchestratorBin  string
	projectRoot      string
	exec             testbed.CommandRunner
}

// normalize validates cfg and applies the derived defaults: the default
// load when none was given, and forced skip-update when the orchestrator
// reads source through a link to the live working tree (linking and a
// fresh checkout are mutually exclusive).
func normalize(cfg runConfig) (runConfig, error) {
	if cfg.committee <= 0 {
		return cfg, fmt.Errorf(
			"committee size must be positive, got %d", cfg.committee,
		)
	}

	if len(cfg.loads) == 0 {
		cfg.loads = []int{defaultLoad}
	}

	for _, load := range cfg.loads {
		if load <= 0 {
			return cfg, fmt.Errorf("loads must be positive, got %d", load)
		}
	}

	if cfg.instances < 0 {
		return cfg, fmt.Errorf(
			"instance count must be positive, got %d", cfg.instances,
		)
	}

	if cfg.useLocalCode {
		cfg.skipUpdate = true
	}

	return cfg, nil
}

func runLocalBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg runConfig,
) error {
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	cfg, err := normalize(cfg)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting local benchmark setup",
		slog.Int("committee", cfg.committee),
		slog.Any("loads", cfg.loads),
		slog.Bool("use_local_code", cfg.useLocalCode),
		slog.Bool("deploy", cfg.deploy),
	)

	// Step 1: Materialize the settings file. Everything after this point
	// assumes local execution mode.
	display.Action("Materializing settings from %s", cfg.settingsTemplate)

	s, err := settings.Materialize(cfg.settingsTemplate, cfg.settingsPath)
	if err != nil {
		return fmt.Errorf("materialize settings: %w", err)
	}

	display.Done("Settings ready at %s", cfg.settingsPath)

	// Step 2: Redirect the orchestrator's expected checkout to this
	// working tree (only on request).
	if cfg.useLocalCode {
		root := cfg.projectRoot
		if root == "" {
			root, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve project root: %w", err)
			}
		}

		display.Action("Linking local code from %s", root)

		linkPath, err := link.Redirect(s, root, logger)
		if err != nil {
			return fmt.Errorf("link local code: %w", err)
		}

		display.Done("Orchestrator reads source through %s", linkPath)
	}

	runner := testbed.NewRunner(
		cfg.orchestratorBin, cfg.settingsPath, cfg.exec, logger,
	)

	// Step 3: Provision local instances (only on request). A failure here
	// aborts the run before any benchmark attempt.
	if cfg.deploy {
		count := cfg.instances
		if count == 0 {
			count = cfg.committee
			display.Warn(
				"No instance count given, defaulting to committee size %d",
				count,
			)
		}

		display.Action("Deploying %d local instances", count)

		if err := runner.Deploy(ctx, count); err != nil {
			return err
		}

		display.Done("Instances deployed")
	}

	if cfg.setupOnly {
		display.Done("Setup complete, benchmark skipped")

		return nil
	}

	// Step 4: Launch the benchmark and wait for it.
	display.Action("Running benchmark: committee=%d loads=%v",
		cfg.committee, cfg.loads)

	err = runner.Benchmark(ctx, testbed.BenchmarkParams{
		Committee:  cfg.committee,
		Loads:      cfg.loads,
		SkipUpdate: cfg.skipUpdate,
		SkipConfig: cfg.skipConfig,
	})
	if err != nil {
		return err
	}

	display.Done("Benchmark complete")

	return nil
}
