// Package live gathers artifact documents from a running Juju controller
// by shelling out to the juju CLI. Callers that already have artifact
// files on disk never touch this package.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"

	"gopkg.in/yaml.v3"

	"medic/internal/artifacts"
	"medic/internal/logging"
)

// Runner executes a command and returns its stdout. Tests swap it out
// to avoid requiring a juju binary.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", name, ee.Stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Gatherer collects status, bundle, and show-unit documents for models.
type Gatherer struct {
	run Runner
	log *slog.Logger
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(g *Gatherer) { g.run = r }
}

// NewGatherer returns a Gatherer that invokes the juju CLI.
func NewGatherer(opts ...Option) *Gatherer {
	g := &Gatherer{
		run: execRunner,
		log: logging.New("live"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Gather fetches each requested artifact kind for model and adds the
// documents to dst under the model name.
func (g *Gatherer) Gather(ctx context.Context, model string, kinds []artifacts.Kind, dst *artifacts.Store) error {
	for _, kind := range kinds {
		doc, err := g.gatherKind(ctx, model, kind)
		if err != nil {
			return fmt.Errorf("gather %s for model %q: %w", kind, model, err)
		}
		if err := dst.Add(kind, model, doc); err != nil {
			return err
		}
		g.log.Debug("gathered artifact", "kind", kind, "model", model)
	}
	return nil
}

func (g *Gatherer) gatherKind(ctx context.Context, model string, kind artifacts.Kind) (any, error) {
	switch kind {
	case artifacts.KindStatus:
		return g.status(ctx, model)
	case artifacts.KindBundle:
		return g.yamlCommand(ctx, "export-bundle", "--model", model, "--format", "yaml")
	case artifacts.KindShowUnit:
		return g.showUnits(ctx, model)
	default:
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
}

func (g *Gatherer) status(ctx context.Context, model string) (map[string]any, error) {
	return g.yamlCommand(ctx, "status", "--model", model, "--format", "yaml")
}

// showUnits lists units from the model's status and merges the show-unit
// document of every unit into one mapping.
func (g *Gatherer) showUnits(ctx context.Context, model string) (map[string]any, error) {
	status, err := g.status(ctx, model)
	if err != nil {
		return nil, err
	}
	units := unitNames(status)

	merged := map[string]any{}
	for _, unit := range units {
		doc, err := g.yamlCommand(ctx, "show-unit", unit, "--model", model, "--format", "yaml")
		if err != nil {
			return nil, err
		}
		for k, v := range doc {
			merged[k] = v
		}
	}
	return merged, nil
}

func (g *Gatherer) yamlCommand(ctx context.Context, args ...string) (map[string]any, error) {
	out, err := g.run(ctx, "juju", args...)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("decode juju %s output: %w", args[0], err)
	}
	return doc, nil
}

func unitNames(status map[string]any) []string {
	apps, _ := status["applications"].(map[string]any)
	var units []string
	for _, app := range apps {
		appDoc, _ := app.(map[string]any)
		unitsDoc, _ := appDoc["units"].(map[string]any)
		for name := range unitsDoc {
			units = append(units, name)
		}
	}
	sort.Strings(units)
	return units
}
