package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/chatvault/internal/configs"
	"github.com/spf13/cobra"
)

// setupTestEnvironment writes a config pointing at a throwaway database and
// audit log and returns its path.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	dir := t.TempDir()
	cfg := configs.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "chatvault.db")
	cfg.AuditLogPath = filepath.Join(dir, "audit.jsonl")

	path := filepath.Join(dir, "config.toml")
	if err := configs.Save(path, cfg); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	ResetGlobalState()
	t.Cleanup(ResetGlobalState)
	return path
}

// captureOutput captures both stdout and stderr during function execution.
// stdin, when non-empty, is piped to the function.
func captureOutput(stdin string, fn func() error) (string, error) {
	originalStdin := os.Stdin
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	if stdin != "" {
		stdinReader, stdinWriter, err := os.Pipe()
		if err != nil {
			return "", err
		}
		if _, err := stdinWriter.WriteString(stdin); err != nil {
			return "", err
		}
		stdinWriter.Close()
		os.Stdin = stdinReader
		defer stdinReader.Close()
	}

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	stdoutChan := make(chan string, 1)
	stderrChan := make(chan string, 1)
	collect := func(r io.Reader, out chan<- string) {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		out <- buf.String()
	}
	go collect(stdoutReader, stdoutChan)
	go collect(stderrReader, stderrChan)

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdin = originalStdin
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-stdoutChan + <-stderrChan, err
}

// runCLI runs chatvault with args against the config at configFile.
func runCLI(t *testing.T, configFile, stdin string, args ...string) string {
	t.Helper()

	output, err := captureOutput(stdin, func() error {
		resetUserCommandState()
		resetChatCommandState()
		resetMessageCommandState()
		resetDeriveCommandState()
		resetRPCCommandState()
		resetLogCommandState()

		rootCmd := &cobra.Command{Use: "chatvault", SilenceUsage: true, SilenceErrors: true}
		Register(rootCmd)
		rootCmd.SetArgs(append([]string{"--config", configFile}, args...))
		return rootCmd.Execute()
	})
	if err != nil {
		t.Fatalf("chatvault %v failed: %v\n%s", args, err, output)
	}
	return output
}
