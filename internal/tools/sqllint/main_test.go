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

func TestLintAcceptsMarkedStatements(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "queries.go", "package q\n\n"+
		"const QSelect = `--sql 81c36086-c1ad-49a3-ad96-47af4498ad0d\nselect 1;\n`\n\n"+
		"const QInsert = `--sql 4b7af8f0-9900-478d-81be-8f313577c076\ninsert into t values (1);\n`\n\n"+
		"const Label = \"Select a size\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}

func TestLintFlagsMissingAndMalformedMarkers(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "queries.go", "package q\n\n"+
		"const QBare = `\nupdate t set x = 1;\n`\n\n"+
		"const QShort = `--sql 1234\ndelete from t;\n`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want 2", violations)
	}
	names := violations[0].name + "," + violations[1].name
	if !strings.Contains(names, "QBare") || !strings.Contains(names, "QShort") {
		t.Fatalf("violations = %v", violations)
	}
}

func TestLintFlagsDuplicateMarkersAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	const marker = "--sql ee73e65c-6c1c-4819-9604-5811ac907fad"
	writeSource(t, dir, "a.go", "package q\n\nconst QA = `"+marker+"\nselect 1;\n`\n")
	writeSource(t, dir, "b.go", "package q\n\nconst QB = `"+marker+"\nselect 2;\n`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("violations = %v, want 1 duplicate", violations)
	}
	if !strings.Contains(violations[0].message, "already used by QA") {
		t.Fatalf("message = %q", violations[0].message)
	}
}

func TestLintSkipsTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "q_test.go", "package q\n\nconst QFixture = `select 1;`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint returned error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("violations = %v, want none", violations)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.go", "package q\n\nconst Q = `--sql 81c36086-c1ad-49a3-ad96-47af4498ad0d\nselect 1;\n`\n")
	bad := writeSource(t, dir, "bad.go", "package q\n\nconst Q = `select 1;`\n")

	var stderr bytes.Buffer
	if code := run([]string{good}, &stderr); code != 0 {
		t.Fatalf("run(good) = %d, stderr %q", code, stderr.String())
	}
	stderr.Reset()
	if code := run([]string{bad}, &stderr); code != 1 {
		t.Fatalf("run(bad) = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "bad.go:3") {
		t.Fatalf("stderr = %q, want file and line", stderr.String())
	}
	stderr.Reset()
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 2 {
		t.Fatalf("run(missing) = %d, want 2", code)
	}
}
