package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// getBinaryPath returns the path to the relief_agent binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "relief_agent"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/relief_agent ./cmd/relief_agent'", binaryPath)
	}

	return binaryPath
}

// newTestCommand returns a bare command with captured output, for calling
// RunE functions directly. Configuration then comes from the environment.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	rootConfigPath = ""

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

// useTempDatabase points DATABASE_URL at a fresh SQLite file.
func useTempDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relief.db")
	t.Setenv("DATABASE_URL", path)
	return path
}
