package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
limiters:
  api:
    strategy: token_bucket
    rate: 100
    per: minute
  uploads:
    strategy: fixed_window
    rate: 5
    window: 30s
    reset_schedule: "@hourly"

audit:
  enabled: true
  backend: sqlite
  sqlite:
    path: %s
`

// useConfig writes a config file with a sqlite journal under a temp dir and
// points the --config flag at it for the duration of the test.
func useConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "audit.db")
	cfgPath = filepath.Join(dir, "throttle.yaml")
	content := []byte(fmt.Sprintf(testConfigYAML, dbPath))
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	orig := cfgFile
	cfgFile = cfgPath
	t.Cleanup(func() { cfgFile = orig })
	return cfgPath, dbPath
}
