package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/throttle/pkg/cli"
)

func TestValidateConfigListsLimiters(t *testing.T) {
	useConfig(t)

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	defer validateCmd.SetOut(nil)

	validateFlags.format = "text"
	if err := validateConfig(validateCmd, nil); err != nil {
		t.Fatalf("validateConfig() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"is valid", "api", "token_bucket", "uploads", "fixed_window", "@hourly"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throttle.yaml")
	content := "limiters:\n  api:\n    strategy: leaky_bucket\n    rate: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	orig := cfgFile
	cfgFile = path
	defer func() { cfgFile = orig }()

	err := validateConfig(validateCmd, nil)
	if err == nil {
		t.Fatal("validateConfig() with invalid config should return error")
	}

	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *cli.ConfigError", err)
	}
	if code := cli.ExitCode(err); code != cli.ExitConfig {
		t.Errorf("ExitCode() = %d, want %d", code, cli.ExitConfig)
	}
}

func TestValidateConfigBadFormat(t *testing.T) {
	orig := validateFlags.format
	defer func() { validateFlags.format = orig }()

	validateFlags.format = "xml"
	if err := validateConfig(validateCmd, nil); err == nil {
		t.Error("validateConfig() with unknown format should return error")
	}
}
