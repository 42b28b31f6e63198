package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shhac/devcopilot/internal/config"
	"github.com/shhac/devcopilot/internal/gemini"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "devcopilot dev") {
		t.Errorf("version output = %q, want prefix %q", out.String(), "devcopilot dev")
	}
}

func TestSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "dashboard", "formcheck", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, sub, err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{" WARN ", zerolog.WarnLevel, false},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAnalyzerFactory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.LoadFrom(t.TempDir() + "/missing.json")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	cfg.GeminiAPIKey = ""

	a, err := analyzerFactory(cfg)("")
	if err != nil {
		t.Fatalf("demo factory error = %v", err)
	}
	if _, ok := a.(gemini.DemoAnalyzer); !ok {
		t.Errorf("empty key analyzer = %T, want gemini.DemoAnalyzer", a)
	}

	a, err = analyzerFactory(cfg)("real-key")
	if err != nil {
		t.Fatalf("client factory error = %v", err)
	}
	if _, ok := a.(*gemini.CachedAnalyzer); !ok {
		t.Errorf("real key analyzer = %T, want *gemini.CachedAnalyzer", a)
	}

	cfg.DisableDemo = true
	if _, err := analyzerFactory(cfg)(gemini.DemoKey); !errors.Is(err, gemini.ErrMissingAPIKey) {
		t.Errorf("disabled demo error = %v, want ErrMissingAPIKey", err)
	}
}
