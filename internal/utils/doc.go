// Package utils provides shared helpers for the chatvault command line.
//
// # Terminal Utilities
//
// Password prompts that never echo input:
//   - ReadPassword: reads from stdin, or /dev/tty when stdin is piped
//   - ReadNewPassword: prompts twice and compares
//   - IsTerminal: checks whether stdin is a terminal
//
// # I/O Utilities
//
//   - ReadStdin: reads all piped input
//   - ReadPasswordLine: reads the first line of a reader as a password
//
// # String Utilities
//
//   - SplitIDs: parses repeated or comma separated id flags
//   - FormatList: renders ids for human-readable output
package utils
