package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"medic/internal/artifacts"
	"medic/internal/builtin"
	"medic/internal/engine"
	"medic/internal/fetch"
	"medic/internal/live"
	"medic/internal/probe"
	"medic/internal/report"
	"medic/internal/store"
)

// rulesetPrefix marks a probe URL as a ruleset document rather than a
// scriptlet. Bare URLs are scriptlets (or directories of them).
const rulesetPrefix = "ruleset:"

// builtinPrefix marks a probe URL as a builtin identifier.
const builtinPrefix = "builtin/"

var checkFlags struct {
	probes        []string
	models        []string
	statusFiles   []string
	bundleFiles   []string
	showUnitFiles []string
	format        string
	verbose       bool
	workers       int
	save          bool
	dbPath        string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run probes against artifact files or a live model",
	RunE:  runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringSliceVarP(&checkFlags.probes, "probe", "p", nil,
		"Probe URL to execute; prefix with 'ruleset:' for a ruleset document")
	f.StringSliceVarP(&checkFlags.models, "model", "m", nil, "Model on which to run live checks")
	f.StringSliceVar(&checkFlags.statusFiles, "status", nil, "Juju status in a .yaml format")
	f.StringSliceVar(&checkFlags.bundleFiles, "bundle", nil, "Juju bundle in a .yaml format")
	f.StringSliceVar(&checkFlags.showUnitFiles, "show-unit", nil, "Juju show-unit in a .yaml format")
	f.StringVarP(&checkFlags.format, "format", "o", "", "Output format: json")
	f.BoolVarP(&checkFlags.verbose, "verbose", "v", false, "Show per-check results")
	f.IntVar(&checkFlags.workers, "workers", 0, "Max concurrent checks (0 = number of CPUs)")
	f.BoolVar(&checkFlags.save, "save", false, "Record this run in the history database")
	f.StringVar(&checkFlags.dbPath, "db", store.DefaultDBPath, "Path to the history database")

	_ = checkCmd.MarkFlagRequired("probe")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	started := time.Now()

	docs, err := gatherArtifacts(cmd)
	if err != nil {
		return err
	}

	fetcher := fetch.New()
	defer fetcher.Close()
	builder := probe.NewBuilder(fetcher, builtin.Default())

	var refs []report.Reference
	var roots []*probe.Node
	for _, raw := range checkFlags.probes {
		url, kind := parseProbeURL(raw)
		node, err := builder.Build(ctx, url, kind, "")
		refs = append(refs, report.Reference{Raw: raw, Node: node, Err: err})
		if err == nil {
			roots = append(roots, node)
		}
	}

	outcomes := engine.NewRunner(checkFlags.workers).Run(ctx, roots, docs)
	result, summary := report.Aggregate(refs, outcomes)

	out := cmd.OutOrStdout()
	switch checkFlags.format {
	case "json":
		if err := report.RenderJSON(out, result, summary); err != nil {
			return err
		}
	case "":
		report.RenderTree(out, result, checkFlags.verbose)
		if checkFlags.verbose {
			for _, msg := range result.FailureMessages() {
				fmt.Fprintln(out, msg)
			}
		}
		report.RenderTotals(out, summary)
	default:
		return fmt.Errorf("unknown output format %q", checkFlags.format)
	}

	if checkFlags.save {
		if err := saveRun(result, summary, started); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	if !summary.Succeeded() {
		return errors.New("checks did not pass")
	}
	return nil
}

// gatherArtifacts collects documents either from a live model or from
// static files; mixing the two is rejected, matching how probes expect a
// consistent model mapping.
func gatherArtifacts(cmd *cobra.Command) (*artifacts.Store, error) {
	anyFiles := len(checkFlags.statusFiles)+len(checkFlags.bundleFiles)+len(checkFlags.showUnitFiles) > 0
	if len(checkFlags.models) > 0 && anyFiles {
		return nil, errors.New("--model cannot be combined with static artifact files")
	}

	docs := artifacts.NewStore()
	if len(checkFlags.models) > 0 {
		gatherer := live.NewGatherer()
		for _, model := range checkFlags.models {
			if err := gatherer.Gather(cmd.Context(), model, artifacts.Kinds(), docs); err != nil {
				return nil, err
			}
		}
		return docs, nil
	}

	// Each file is its own model entry, keyed by the file path.
	fileSets := []struct {
		kind  artifacts.Kind
		paths []string
	}{
		{artifacts.KindStatus, checkFlags.statusFiles},
		{artifacts.KindBundle, checkFlags.bundleFiles},
		{artifacts.KindShowUnit, checkFlags.showUnitFiles},
	}
	for _, fs := range fileSets {
		for _, path := range fs.paths {
			if err := docs.AddFile(fs.kind, path, path); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func parseProbeURL(raw string) (string, probe.Kind) {
	switch {
	case strings.HasPrefix(raw, rulesetPrefix):
		return strings.TrimPrefix(raw, rulesetPrefix), probe.KindRuleset
	case strings.HasPrefix(raw, builtinPrefix):
		return strings.TrimPrefix(raw, builtinPrefix), probe.KindBuiltin
	default:
		return raw, probe.KindScriptlet
	}
}

func saveRun(result *report.ResultNode, summary report.Summary, started time.Time) error {
	var buf bytes.Buffer
	if err := report.RenderJSON(&buf, result, summary); err != nil {
		return err
	}
	s, err := store.Open(checkFlags.dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	_, err = s.SaveRun(&store.RunRecord{
		StartedAt:     started.UTC().Format(time.RFC3339),
		DurationMS:    time.Since(started).Milliseconds(),
		Probes:        checkFlags.probes,
		Passed:        summary.Passed,
		Failed:        summary.Failed,
		Unresolved:    summary.Unresolved,
		NotApplicable: summary.NotApplicable,
		Report:        buf.String(),
	})
	return err
}
