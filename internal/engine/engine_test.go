package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medic/internal/artifacts"
	"medic/internal/builtin"
	"medic/internal/engine"
	"medic/internal/fetch"
	"medic/internal/probe"
)

func buildProbe(t *testing.T, raw string, kind probe.Kind) *probe.Node {
	t.Helper()
	f := fetch.New()
	t.Cleanup(func() { f.Close() })
	node, err := probe.NewBuilder(f, builtin.Default()).Build(context.Background(), raw, kind, "")
	if err != nil {
		t.Fatalf("Build(%q): %v", raw, err)
	}
	return node
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func statusStore(t *testing.T, models ...string) *artifacts.Store {
	t.Helper()
	s := artifacts.NewStore()
	for _, m := range models {
		if err := s.Add(artifacts.KindStatus, m, map[string]any{"applications": map[string]any{}}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestRunScriptletPassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.yaml"), `
name: demo
probes:
  - {name: a, type: scriptlet, url: a.yaml}
  - {name: b, type: scriptlet, url: b.yaml}
`)
	writeFile(t, filepath.Join(dir, "a.yaml"), `status: fail("a always fails")`+"\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "status: len(models) == 1\n")

	root := buildProbe(t, filepath.Join(dir, "rules.yaml"), probe.KindRuleset)
	outcomes := engine.NewRunner(4).Run(context.Background(), []*probe.Node{root}, statusStore(t, "m"))

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Node.Name != "a" || outcomes[0].Status != engine.StatusFail {
		t.Errorf("outcome[0] = %q %s, want a fail", outcomes[0].Node.Name, outcomes[0].Status)
	}
	if !strings.Contains(outcomes[0].Message, "a always fails") {
		t.Errorf("fail message = %q", outcomes[0].Message)
	}
	if outcomes[1].Node.Name != "b" || outcomes[1].Status != engine.StatusPass {
		t.Errorf("outcome[1] = %q %s, want b pass", outcomes[1].Node.Name, outcomes[1].Status)
	}
}

func TestRunLeafReceivesAllModels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")
	writeFile(t, path, `status: '"cos" in models && "cos2" in models && len(models) == 2'`+"\n")

	root := buildProbe(t, path, probe.KindScriptlet)
	outcomes := engine.NewRunner(1).Run(context.Background(), []*probe.Node{root}, statusStore(t, "cos", "cos2"))

	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1: the leaf runs once with the full mapping", len(outcomes))
	}
	if outcomes[0].Status != engine.StatusPass {
		t.Errorf("outcome = %s (%s), want pass", outcomes[0].Status, outcomes[0].Message)
	}
}

func TestRunScriptletWithNoCapabilities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	writeFile(t, path, "")

	root := buildProbe(t, path, probe.KindScriptlet)
	outcomes := engine.NewRunner(1).Run(context.Background(), []*probe.Node{root}, statusStore(t, "m"))

	if len(outcomes) != 0 {
		t.Errorf("got %d outcomes, want 0 for a scriptlet with no applicable checks", len(outcomes))
	}
}

func TestRunMultipleCapabilitiesPerLeaf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.yaml")
	writeFile(t, path, "status: len(models) == 1\nbundle: fail(\"bad bundle\")\n")

	store := statusStore(t, "m")
	if err := store.Add(artifacts.KindBundle, "m", map[string]any{}); err != nil {
		t.Fatal(err)
	}

	root := buildProbe(t, path, probe.KindScriptlet)
	outcomes := engine.NewRunner(2).Run(context.Background(), []*probe.Node{root}, store)

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	// Canonical capability order: status before bundle.
	if outcomes[0].Capability != artifacts.KindStatus || outcomes[0].Status != engine.StatusPass {
		t.Errorf("outcome[0] = %s %s", outcomes[0].Capability, outcomes[0].Status)
	}
	if outcomes[1].Capability != artifacts.KindBundle || outcomes[1].Status != engine.StatusFail {
		t.Errorf("outcome[1] = %s %s: one capability's failure must not mask the other",
			outcomes[1].Capability, outcomes[1].Status)
	}
}

func TestRunBuiltinValidationFailureIsLeafFail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.yaml"), `
name: demo
probes:
  - type: builtin/applications
    with:
      - minimum: 1
  - {name: ok, type: scriptlet, url: ok.yaml}
`)
	writeFile(t, filepath.Join(dir, "ok.yaml"), "status: len(models) >= 0\n")

	root := buildProbe(t, filepath.Join(dir, "rules.yaml"), probe.KindRuleset)
	outcomes := engine.NewRunner(1).Run(context.Background(), []*probe.Node{root}, statusStore(t, "m"))

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Status != engine.StatusFail || !strings.Contains(outcomes[0].Message, "invalid arguments") {
		t.Errorf("outcome[0] = %s %q, want fail with validation message",
			outcomes[0].Status, outcomes[0].Message)
	}
	if outcomes[1].Status != engine.StatusPass {
		t.Errorf("sibling leaf affected by validation failure: %s", outcomes[1].Status)
	}
}

func TestRunUnresolvedNodesProduceNoOutcomes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.yaml"), `
name: demo
probes:
  - {type: scriptlet, url: missing.yaml}
  - {name: ok, type: scriptlet, url: ok.yaml}
`)
	writeFile(t, filepath.Join(dir, "ok.yaml"), "status: len(models) >= 0\n")

	root := buildProbe(t, filepath.Join(dir, "rules.yaml"), probe.KindRuleset)
	outcomes := engine.NewRunner(1).Run(context.Background(), []*probe.Node{root}, statusStore(t, "m"))

	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1: unresolved leaves are not executed", len(outcomes))
	}
	if outcomes[0].Node.Name != "ok" {
		t.Errorf("outcome node = %q, want ok", outcomes[0].Node.Name)
	}
}

func TestRunParallelDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	probesDir := filepath.Join(dir, "probes")
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml", "d.yaml"} {
		writeFile(t, filepath.Join(probesDir, name), "status: len(models) >= 0\n")
	}

	root := buildProbe(t, probesDir, probe.KindScriptlet)
	store := statusStore(t, "m")

	sequential := engine.NewRunner(1).Run(context.Background(), []*probe.Node{root}, store)
	parallel := engine.NewRunner(8).Run(context.Background(), []*probe.Node{root}, store)

	if len(sequential) != len(parallel) {
		t.Fatalf("outcome counts differ: %d vs %d", len(sequential), len(parallel))
	}
	for i := range sequential {
		if sequential[i].Node != parallel[i].Node || sequential[i].Status != parallel[i].Status {
			t.Errorf("outcome %d differs between sequential and parallel runs", i)
		}
	}
}
