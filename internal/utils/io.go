package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ReadStdin reads all content from stdin.
// Returns an error if stdin is empty, is a terminal (no piped data), or cannot be read.
func ReadStdin() ([]byte, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat stdin: %w", err)
	}

	// If ModeCharDevice is set, stdin is connected to a terminal.
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, fmt.Errorf("no data provided on stdin")
	}

	return readAllNonEmpty(os.Stdin)
}

// ReadPasswordLine reads a password from r up to the first newline, as in
// `echo "$PW" | chatvault user init --password-stdin`.
func ReadPasswordLine(r io.Reader) ([]byte, error) {
	data, err := readAllNonEmpty(r)
	if err != nil {
		return nil, err
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	data = bytes.TrimSuffix(data, []byte("\r"))

	if len(data) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	return data, nil
}

func readAllNonEmpty(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input is empty")
	}
	return data, nil
}
