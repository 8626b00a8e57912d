package utils

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/term"
)

func ttyPath() string {
	if runtime.GOOS == "windows" {
		return "CON"
	}
	return "/dev/tty"
}

// ReadPassword prompts for a password without echoing input. It reads from
// stdin when stdin is a terminal and from /dev/tty otherwise, so a command
// can still prompt while its stdin is piped.
func ReadPassword(prompt string) ([]byte, error) {
	if IsTerminal() {
		return readPasswordFrom(int(os.Stdin.Fd()), prompt)
	}

	tty, err := os.Open(ttyPath())
	if err != nil {
		return nil, fmt.Errorf("cannot open %s for password input: %w", ttyPath(), err)
	}
	defer tty.Close()

	fd := int(tty.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is not a terminal", ttyPath())
	}
	return readPasswordFrom(fd, prompt)
}

// ReadNewPassword prompts twice and fails if the entries differ.
func ReadNewPassword(prompt string) ([]byte, error) {
	first, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	second, err := ReadPassword("Confirm password: ")
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if !bytes.Equal(first, second) {
		clear(first)
		return nil, fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func readPasswordFrom(fd int, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}

	return password, nil
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
