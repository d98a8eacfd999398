// Package testbed composes and launches the external orchestrator's
// testbed and benchmark commands.
package testbed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// BenchmarkParams holds the parameters of one benchmark invocation.
type BenchmarkParams struct {
	Committee  int
	Loads      []int
	SkipUpdate bool
	SkipConfig bool
}

// Args returns the orchestrator's benchmark argument vector: one committee
// flag, one loads flag per load value in input order, then the conditional
// skip flags.
func (p BenchmarkParams) Args() []string {
	args := []string{"benchmark", "--committee", strconv.Itoa(p.Committee)}

	for _, load := range p.Loads {
		args = append(args, "--loads", strconv.Itoa(load))
	}

	if p.SkipUpdate {
		args = append(args, "--skip-testbed-update")
	}

	if p.SkipConfig {
		args = append(args, "--skip-testbed-configuration")
	}

	return args
}

// Runner invokes the external orchestrator executable. Every invocation is
// a blocking foreground call; there is no timeout layer, so a hung
// orchestrator blocks the wrapper until interrupted externally.
type Runner struct {
	binary       string
	settingsPath string
	exec         CommandRunner
	logger       *slog.Logger
}

// NewRunner creates a Runner for the orchestrator at binary, passing
// settingsPath to every invocation.
func NewRunner(
	binary, settingsPath string,
	exec CommandRunner,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		binary:       binary,
		settingsPath: settingsPath,
		exec:         exec,
		logger:       logger.With(slog.String("orchestrator", binary)),
	}
}

// Deploy provisions the given number of local instances through the
// orchestrator.
func (r *Runner) Deploy(ctx context.Context, instances int) error {
	args := r.args("testbed", "deploy", "--instances", strconv.Itoa(instances))

	r.logger.InfoContext(ctx, "deploying local instances",
		slog.Int("instances", instances),
	)

	if err := r.exec.Run(ctx, r.binary, args...); err != nil {
		return fmt.Errorf("deploy instances: %w", err)
	}

	return nil
}

// Benchmark launches a benchmark run and blocks until it finishes. Log
// collection and metric interpretation stay with the orchestrator.
func (r *Runner) Benchmark(ctx context.Context, p BenchmarkParams) error {
	args := r.args(p.Args()...)

	r.logger.InfoContext(ctx, "starting benchmark",
		slog.Int("committee", p.Committee),
		slog.Any("loads", p.Loads),
		slog.Bool("skip_update", p.SkipUpdate),
		slog.Bool("skip_config", p.SkipConfig),
	)

	if err := r.exec.Run(ctx, r.binary, args...); err != nil {
		return fmt.Errorf("run benchmark: %w", err)
	}

	return nil
}

func (r *Runner) args(sub ...string) []string {
	args := []string{"--settings-path", r.settingsPath}

	return append(args, sub...)
}
