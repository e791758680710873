package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestList(t *testing.T) {
	code, out, _ := run(t, "list")
	if code != exitOK {
		t.Fatalf("Expected exit code %d, got %d", exitOK, code)
	}
	for _, name := range []string{"lost-update", "lock-order", "consensus"} {
		if !strings.Contains(out, name) {
			t.Errorf("Expected %v to be listed. Got:\n%s", name, out)
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"completed", []string{"run", "two-writes", "--workers", "1"}, exitOK},
		{"violated", []string{"run", "lost-update", "--workers", "1"}, exitViolation},
		{"deadlocked", []string{"run", "lock-order", "--workers", "1"}, exitViolation},
		{"budget", []string{"run", "two-writes", "--strategy", "random", "--seed", "3", "--max-executions", "5", "--workers", "1"}, exitOK},
		{"unknown program", []string{"run", "nothing"}, exitError},
		{"unknown strategy", []string{"run", "two-writes", "--strategy", "bfs"}, exitError},
		{"negative depth", []string{"run", "two-writes", "--max-depth", "-1"}, exitError},
		{"missing argument", []string{"run"}, exitError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, out, errOut := run(t, test.args...)
			if code != test.code {
				t.Fatalf("Expected exit code %d, got %d\nstdout:\n%s\nstderr:\n%s", test.code, code, out, errOut)
			}
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("strategy: dpor\nworkers: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, _ := run(t, "run", "two-writes", "--config", path, "--json")
	if code != exitOK {
		t.Fatalf("Expected exit code %d, got %d", exitOK, code)
	}
	if !strings.Contains(out, `"completed"`) {
		t.Errorf("Expected a JSON report. Got:\n%s", out)
	}

	if err := os.WriteFile(path, []byte("strategy: dpor\ncolour: blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := run(t, "run", "two-writes", "--config", path)
	if code != exitError {
		t.Fatalf("Expected exit code %d for an unknown key, got %d", exitError, code)
	}
	if !strings.Contains(errOut, "colour") {
		t.Errorf("Expected the unknown key in the error. Got: %s", errOut)
	}
}

func TestRunReplayAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lost-update.json")

	code, out, _ := run(t, "run", "lost-update", "--workers", "1", "--out", path)
	if code != exitViolation {
		t.Fatalf("Expected exit code %d, got %d", exitViolation, code)
	}
	if !strings.Contains(out, "Violation: assertion") {
		t.Errorf("Expected the counterexample to be rendered. Got:\n%s", out)
	}

	code, out, errOut := run(t, "replay", "lost-update", "--file", path)
	if code != exitViolation {
		t.Fatalf("Expected exit code %d, got %d\n%s", exitViolation, code, errOut)
	}
	if !strings.Contains(out, "Reproduced") {
		t.Errorf("Expected the violation to be reproduced. Got:\n%s", out)
	}

	code, out, _ = run(t, "show", "--file", path)
	if code != exitOK {
		t.Fatalf("Expected exit code %d, got %d", exitOK, code)
	}
	if !strings.Contains(out, "Decisions:") {
		t.Errorf("Expected the decisions to be shown. Got:\n%s", out)
	}
}

func TestStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	code, _, _ := run(t, "run", "lock-order", "--workers", "1", "--store", dir)
	if code != exitViolation {
		t.Fatalf("Expected exit code %d, got %d", exitViolation, code)
	}

	code, out, _ := run(t, "show", "--store", dir)
	if code != exitOK {
		t.Fatalf("Expected exit code %d, got %d", exitOK, code)
	}
	if !strings.HasPrefix(out, "1\t") || !strings.Contains(out, "deadlock") {
		t.Errorf("Expected one deadlock in the log. Got:\n%s", out)
	}

	code, _, errOut := run(t, "replay", "lock-order", "--store", dir, "--index", "1")
	if code != exitViolation {
		t.Fatalf("Expected exit code %d, got %d\n%s", exitViolation, code, errOut)
	}
}

func TestReplayRequiresSource(t *testing.T) {
	code, _, errOut := run(t, "replay", "lost-update")
	if code != exitError {
		t.Fatalf("Expected exit code %d, got %d", exitError, code)
	}
	if !strings.Contains(errOut, "--file") {
		t.Errorf("Expected the missing flag in the error. Got: %s", errOut)
	}
}
