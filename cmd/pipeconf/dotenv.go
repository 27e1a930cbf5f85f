// ABOUTME: Loads environment variables from .env files at startup.
// ABOUTME: Sets variables only when not already present in the environment (no clobber).
package main

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// loadDotEnv reads a .env file and sets any variables not already in the
// environment, returning how many it set. A missing file is not an error.
// Supports KEY=VALUE, KEY="VALUE", KEY='VALUE', export KEY=VALUE, and # comments.
func loadDotEnv(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	set := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return set, err
		}
		set++
	}
	return set, scanner.Err()
}

// parseEnvLine splits one .env line. Values may contain '='.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, ok = strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}

// loadDotEnvAuto loads .env from the working directory, then from the
// PIPECONF_HOME directory if that is set by then. Earlier files win.
func loadDotEnvAuto() {
	seen := map[string]bool{}
	load := func(dir string) {
		if dir == "" {
			return
		}
		p := filepath.Join(dir, ".env")
		if seen[p] {
			return
		}
		seen[p] = true
		if _, err := loadDotEnv(p); err != nil {
			warnf("could not load %s: %v", p, err)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		load(wd)
	}
	load(os.Getenv("PIPECONF_HOME"))
}
