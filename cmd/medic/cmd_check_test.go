package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medic/internal/probe"
)

func TestParseProbeURL(t *testing.T) {
	tests := []struct {
		raw  string
		url  string
		kind probe.Kind
	}{
		{"probes/status.yaml", "probes/status.yaml", probe.KindScriptlet},
		{"ruleset:all.yaml", "all.yaml", probe.KindRuleset},
		{"ruleset:github://org/repo//rs.yaml", "github://org/repo//rs.yaml", probe.KindRuleset},
		{"builtin/applications", "applications", probe.KindBuiltin},
		{"github://org/repo//probes", "github://org/repo//probes", probe.KindScriptlet},
	}
	for _, tt := range tests {
		url, kind := parseProbeURL(tt.raw)
		if url != tt.url || kind != tt.kind {
			t.Errorf("parseProbeURL(%q) = %q %s, want %q %s", tt.raw, url, kind, tt.url, tt.kind)
		}
	}
}

func TestCheckCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	probePath := filepath.Join(dir, "healthy.yaml")
	if err := os.WriteFile(probePath, []byte("status: len(models) > 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	statusPath := filepath.Join(dir, "status.yaml")
	if err := os.WriteFile(statusPath, []byte("applications:\n  grafana: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"check", "-p", probePath, "--status", statusPath})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Total:") {
		t.Errorf("output missing totals line:\n%s", out.String())
	}
}

func TestCheckRejectsModelWithStaticFiles(t *testing.T) {
	checkFlags.models = []string{"prod"}
	checkFlags.statusFiles = []string{"status.yaml"}
	defer func() {
		checkFlags.models = nil
		checkFlags.statusFiles = nil
	}()

	_, err := gatherArtifacts(checkCmd)
	if err == nil || !strings.Contains(err.Error(), "--model") {
		t.Fatalf("err = %v, want static-file conflict", err)
	}
}
