// Package logger provides levelled logging for chatvault.
//
// # Verbosity Levels
//
// Logging behavior is controlled by two flags:
//
//   - Verbose: shows info messages
//   - Debug: shows info and debug messages
//
// Warnings and errors are always written to the error writer. Partial key
// distribution (a recipient without a master key) is reported as a warning.
//
// # Secrets
//
// Never pass key material to the logger. secrets.Key redacts itself when
// formatted, but raw byte slices do not.
//
// # Usage
//
//	log := logger.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Created chat key version %d", version)
package logger
