// Package engine runs every leaf probe's applicable capabilities against
// the artifact store, capturing one outcome per (leaf, capability) pair.
// Leaf executions are mutually independent: a failure in one never aborts
// evaluation of sibling leaves or other capabilities of the same leaf.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"medic/internal/artifacts"
	"medic/internal/logging"
	"medic/internal/probe"
)

// Status is the result of one capability invocation.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Outcome records one capability invocation on one leaf. Created during
// execution, never mutated afterward.
type Outcome struct {
	Node       *probe.Node
	Capability artifacts.Kind
	Status     Status
	Message    string // failure detail, empty on pass
}

// Runner executes probe trees. Workers bounds parallel leaf execution.
type Runner struct {
	Workers int
	log     *slog.Logger
}

// NewRunner returns a Runner with the given parallelism bound.
// A bound below 1 means one worker per CPU.
func NewRunner(workers int) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Runner{Workers: workers, log: logging.New("engine")}
}

type job struct {
	index      int
	node       *probe.Node
	capability artifacts.Kind
}

// Run invokes every capability of every resolvable leaf beneath the given
// roots. Each invocation receives the complete model -> document mapping
// for its capability's artifact kind. Outcomes are returned in
// deterministic tree order regardless of parallelism.
func (r *Runner) Run(ctx context.Context, roots []*probe.Node, store *artifacts.Store) []Outcome {
	var jobs []job
	for _, root := range roots {
		if root == nil {
			continue
		}
		for _, leaf := range root.Leaves() {
			for _, capability := range leaf.Capabilities() {
				jobs = append(jobs, job{index: len(jobs), node: leaf, capability: capability})
			}
		}
	}

	outcomes := make([]Outcome, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			outcomes[j.index] = r.runOne(ctx, j, store)
			return nil
		})
	}
	_ = g.Wait() // failures are captured per outcome, never as group errors

	return outcomes
}

// runOne executes a single (leaf, capability) pair. Errors and panics are
// converted to fail outcomes; execution of other pairs is unaffected.
func (r *Runner) runOne(ctx context.Context, j job, store *artifacts.Store) (out Outcome) {
	out = Outcome{Node: j.node, Capability: j.capability, Status: StatusPass}
	defer func() {
		if rec := recover(); rec != nil {
			out.Status = StatusFail
			out.Message = fmt.Sprintf("probe panicked: %v", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Status = StatusFail
		out.Message = err.Error()
		return out
	}

	models := store.ByKind(j.capability)
	var err error
	switch j.node.Kind {
	case probe.KindScriptlet:
		err = j.node.Script.Run(j.capability, models)
	case probe.KindBuiltin:
		err = j.node.Builtin.Run(models)
	default:
		err = fmt.Errorf("node %q is not executable", j.node.Name)
	}
	if err != nil {
		r.log.Debug("probe failed", "probe", j.node.Name, "capability", j.capability, "error", err)
		out.Status = StatusFail
		out.Message = err.Error()
	}
	return out
}
