package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/chatvault/cmd"
	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "Chatvault - end-to-end encryption keys for chat messages.",
	Long: `Chatvault manages the keys that encrypt chat messages end to end.

Features:
  - Password-derived master keys (PBKDF2-SHA256)
  - Standardized chat keys derived from chat and workspace ids (HKDF-SHA256)
  - Legacy per-user wrapped chat keys with rotation and revocation
  - AES-256-GCM message encryption
  - A NATS request/reply server for other services

Usage:
  chatvault <command> [flags]

Run 'chatvault help <command>' for more details on a specific command.
`,
	SilenceUsage: true,
	Run: func(c *cobra.Command, args []string) {
		figure.NewColorFigure("chatvault", "small", "green", true).Print()
		fmt.Println()
		fmt.Println("Welcome to chatvault! Run 'chatvault --help' to see available commands.")
	},
}

func init() {
	cmd.Register(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
