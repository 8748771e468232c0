package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const profileYAML = `
originator:
  name: Hospital Sao Jose
  tax_id: "12345678000190"
  bank_code: "001"
  branch: "1234"
  account: "98765"
timezone: UTC
`

func TestRun_JSONInputWritesFile(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.yaml")
	input := filepath.Join(dir, "payments.json")
	counter := filepath.Join(dir, "nsa")
	out := filepath.Join(dir, "out")
	mustWrite(t, profile, profileYAML)
	mustWrite(t, input, `[
  {"beneficiary_name": "Maria Souza", "amount": "150.00", "due_date": "12/03/2025", "document": "12345678909", "key": "maria@example.com"}
]`)
	mustWrite(t, counter, "9")

	if err := run([]string{"--input", input, "--config", profile, "--counter", counter, "--out", out}); err != nil {
		t.Fatalf("run: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(out, "REM000010.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.Count(string(content), "\r\n"); got != 6 {
		t.Fatalf("expected 6 records, got %d", got)
	}
	stored, _ := os.ReadFile(counter)
	if strings.TrimSpace(string(stored)) != "10" {
		t.Fatalf("expected persisted counter 10, got %q", stored)
	}

	// A second run takes the next sequence and never overwrites.
	if err := run([]string{"--input", input, "--config", profile, "--counter", counter, "--out", out}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "REM000011.txt")); err != nil {
		t.Fatalf("expected second file: %v", err)
	}
}

func TestRun_EmptyBatchKeepsCounter(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.yaml")
	input := filepath.Join(dir, "payments.json")
	counter := filepath.Join(dir, "nsa")
	mustWrite(t, profile, profileYAML)
	mustWrite(t, input, `[]`)
	mustWrite(t, counter, "4")

	if err := run([]string{"-i", input, "-c", profile, "--counter", counter, "-o", dir}); err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, _ := os.ReadFile(counter)
	if strings.TrimSpace(string(stored)) != "4" {
		t.Fatalf("counter changed to %q", stored)
	}
}

func TestRun_RequiresInput(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatalf("expected error without --input")
	}
	if err := run([]string{"--input", "payments.csv", "--counter", filepath.Join(t.TempDir(), "nsa")}); err == nil {
		t.Fatalf("expected error for unsupported input")
	}
}

func TestRun_MintToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	if err := run([]string{"--mint-token", "operator", "--tenant", "tenant-a"}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := run([]string{"--mint-token", "root"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
