package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("CHECKWEIGHER_SEED", "")
	t.Setenv("CHECKWEIGHER_LOG_LEVEL", "")

	configPath := filepath.Join(base, "checkweigher.toml")
	content := fmt.Sprintf(`[paths]
log_dir = %q
state_dir = %q

[safe_swap]
poll_interval_ms = 1

[logging]
level = "error"

[simulation]
seed = 42
ticks = 1200
`, filepath.Join(base, "logs"), filepath.Join(base, "state"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestIntervalCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"interval", "--weight", "25", "--rate", "30000"}, "")
	if err != nil {
		t.Fatalf("interval: %v", err)
	}
	requireContains(t, out, "180 ticks")

	out, _, err = runCLI(t, []string{"interval", "--weight", "750", "--rate", "30000", "--multiplier", "10"}, "")
	if err != nil {
		t.Fatalf("interval: %v", err)
	}
	requireContains(t, out, "540 ticks")

	if _, _, err := runCLI(t, []string{"interval", "--weight", "0", "--rate", "30000"}, ""); err == nil {
		t.Fatal("expected error for zero weight")
	}
}

func TestProfilesCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"profiles"}, env.configPath)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	requireContains(t, out, "small")
	requireContains(t, out, "large")
	requireContains(t, out, "Small Bag")
	requireContains(t, out, "754.000")

	out, _, err = runCLI(t, []string{"profiles", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("profiles --json: %v", err)
	}
	var views []struct {
		Name     string `json:"name"`
		Interval int    `json:"spawn_interval_ticks"`
	}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode profiles: %v", err)
	}
	if len(views) != 2 || views[0].Name != "large" || views[0].Interval != 540 || views[1].Interval != 180 {
		t.Fatalf("unexpected profiles: %+v", views)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "sample", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# source: "+env.configPath)
	requireContains(t, out, "scan_position")
}

func TestRunCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"run", "--machine", "A", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res struct {
		Seed     uint64 `json:"seed"`
		Ticks    int    `json:"ticks"`
		Machines []struct {
			Name  string `json:"name"`
			Stats struct {
				Produced int `json:"produced"`
			} `json:"stats"`
		} `json:"machines"`
		Summary []struct {
			Line string `json:"line"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode run result: %v\n%s", err, out)
	}
	if res.Seed != 42 || res.Ticks != 1200 {
		t.Fatalf("unexpected run header: seed=%d ticks=%d", res.Seed, res.Ticks)
	}
	if len(res.Machines) != 1 || res.Machines[0].Name != "A" || res.Machines[0].Stats.Produced != 6 {
		t.Fatalf("unexpected machines: %+v", res.Machines)
	}
	if len(res.Summary) != 1 || res.Summary[0].Line != "A" {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
}

func TestRunCommandRendersTables(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"run", "--ticks", "1500", "--swap", "A:400=large", "--follow"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Machine A")
	requireContains(t, out, "Machine B")
	requireContains(t, out, "Journal summary")
	requireContains(t, out, "Production orders")
	requireContains(t, out, "Recent verdicts")
	requireContains(t, out, "Line A:")
	requireContains(t, out, "drained yes")
}

func TestRunCommandRejectsBadControlInput(t *testing.T) {
	env := setupCLITestEnv(t)
	cases := [][]string{
		{"run", "--swap", "soon"},
		{"run", "--swap-mode", "eventually"},
		{"run", "--machine", "Z"},
		{"run", "--pause-at", "Z:10"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}
