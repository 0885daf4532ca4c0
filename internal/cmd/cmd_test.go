package cmd

import (
	"strings"
	"testing"

	"github.com/instant-demo/demopool/internal/health"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "demopool" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "demopool")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"create", "list", "cleanup", "prepare", "rebuild", "stats", "daemon"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	// Styles may or may not emit escape codes depending on the terminal;
	// the status text itself must always survive rendering.
	tests := []string{
		health.StatusOK,
		health.StatusCriticalOverload,
		health.StatusWarnTooFewPrepared,
		"TEMPLATE:degraded",
	}
	for _, status := range tests {
		if got := renderStatus(status); !strings.Contains(got, status) {
			t.Errorf("renderStatus(%q) = %q, lost the status text", status, got)
		}
	}
}
