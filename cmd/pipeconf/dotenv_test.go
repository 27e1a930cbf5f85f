// ABOUTME: Tests for the .env file loader that reads KEY=VALUE pairs into the process environment.
// ABOUTME: Covers plain and quoted values, comments, export prefixes, and no-clobber behavior.
package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// unset clears keys for the test and restores them afterwards.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	unset(t, "TEST_PIPECONF_A", "TEST_PIPECONF_B", "TEST_PIPECONF_C", "TEST_PIPECONF_D")
	path := writeTempEnv(t, `# comment

TEST_PIPECONF_A=hello
export TEST_PIPECONF_B="quoted value"
TEST_PIPECONF_C='single'
TEST_PIPECONF_D=a=b=c
not a pair
`)

	n, err := loadDotEnv(path)
	if err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if n != 4 {
		t.Errorf("set %d variables, want 4", n)
	}
	want := map[string]string{
		"TEST_PIPECONF_A": "hello",
		"TEST_PIPECONF_B": "quoted value",
		"TEST_PIPECONF_C": "single",
		"TEST_PIPECONF_D": "a=b=c",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestLoadDotEnvDoesNotClobber(t *testing.T) {
	t.Setenv("TEST_PIPECONF_KEEP", "original")
	path := writeTempEnv(t, "TEST_PIPECONF_KEEP=replaced\n")

	n, err := loadDotEnv(path)
	if err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if n != 0 || os.Getenv("TEST_PIPECONF_KEEP") != "original" {
		t.Errorf("existing variable was overwritten (n=%d, value=%q)", n, os.Getenv("TEST_PIPECONF_KEEP"))
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	n, err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || n != 0 {
		t.Errorf("missing file should be ignored, got n=%d err=%v", n, err)
	}
}

func TestParseEnvLineMismatchedQuotes(t *testing.T) {
	key, value, ok := parseEnvLine(`K="open'`)
	if !ok || key != "K" || value != `"open'` {
		t.Errorf("parseEnvLine = %q %q %v", key, value, ok)
	}
	if _, _, ok := parseEnvLine("=value"); ok {
		t.Error("empty key must be skipped")
	}
}
