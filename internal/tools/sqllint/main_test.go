package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintFlagsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", "package q\n\n"+
		"const QOne = `--sql 11111111-2222-4333-8444-555555555555\nSELECT 1`\n\n"+
		"const QBare = `SELECT 2`\n\n"+
		"const Greeting = \"hello\"\n")
	writeSource(t, dir, "b.go", "package q\n\n"+
		"const QCopy = `--sql 11111111-2222-4333-8444-555555555555\nDELETE FROM t`\n")
	writeSource(t, dir, "b_test.go", "package q\n\nconst QIgnored = `SELECT 3`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(violations), violations)
	}
	if violations[0].name != "QBare" || !strings.Contains(violations[0].message, "missing") {
		t.Fatalf("unexpected first violation: %v", violations[0])
	}
	if violations[1].name != "QCopy" || !strings.Contains(violations[1].message, "QOne") {
		t.Fatalf("unexpected second violation: %v", violations[1])
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	clean := writeSource(t, dir, "clean.go", "package q\n\nconst Q = `--sql aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee\nUPDATE t SET x = 1`\n")

	var out bytes.Buffer
	if code := run([]string{clean}, &out); code != 0 {
		t.Fatalf("expected clean exit, got %d: %s", code, out.String())
	}
	if code := run([]string{filepath.Join(dir, "missing")}, &out); code != 2 {
		t.Fatalf("expected exit 2 for missing target, got %d", code)
	}
}

func TestRepositoryStatementsAreMarked(t *testing.T) {
	violations, err := lint([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}
