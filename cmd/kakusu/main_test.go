package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kakusu/internal/config"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after file are moved first",
			args:     []string{"report.txt", "-reset", "--keywords", "a,b"},
			expected: []string{"-reset", "--keywords", "a,b", "report.txt"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-reset", "report.txt"},
			expected: []string{"-reset", "report.txt"},
		},
		{
			name:     "file only returns unchanged",
			args:     []string{"report.txt"},
			expected: []string{"report.txt"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		dir, input, suffix, want string
	}{
		{"out", "/docs/report.docx", ".zip", filepath.Join("out", "report.zip")},
		{".", "notes.txt", ".edits.csv", "notes.edits.csv"},
		{"out", "archive.tar.gz", ".zip", filepath.Join("out", "archive.tar.zip")},
		{"out", "README", ".zip", filepath.Join("out", "README.zip")},
	}
	for _, tt := range tests {
		if got := outputPath(tt.dir, tt.input, tt.suffix); got != tt.want {
			t.Errorf("outputPath(%q, %q, %q) = %q, want %q", tt.dir, tt.input, tt.suffix, got, tt.want)
		}
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("KAKUSU_CONFIG", "")
	if got := configPathFromEnv(); got != defaultConfigPath {
		t.Errorf("got %q", got)
	}
	t.Setenv("KAKUSU_CONFIG", "/tmp/k.yaml")
	if got := configPathFromEnv(); got != "/tmp/k.yaml" {
		t.Errorf("got %q", got)
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chunking:\n  size: 500\n  overlap: 50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path || cfg.Chunking.Size != 500 || cfg.Anonymize.Seed != 1 {
		t.Errorf("resolved %q, cfg %+v", resolved, cfg.Chunking)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestLoadConfig_defaultsWhenNothingFound(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config is installed")
	}
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	if resolved != "" || cfg.Chunking != want.Chunking {
		t.Errorf("resolved %q, chunking %+v", resolved, cfg.Chunking)
	}
}

func TestLoadConfig_prefersWorkingDirectory(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("config.yaml", []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug || filepath.Base(resolved) != "config.yaml" {
		t.Errorf("resolved %q, debug %v", resolved, cfg.Debug)
	}
}
