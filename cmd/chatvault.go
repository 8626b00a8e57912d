package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/chatvault/internal/audit"
	"github.com/PolarWolf314/chatvault/internal/configs"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
	"github.com/PolarWolf314/chatvault/internal/storage"
	"github.com/PolarWolf314/chatvault/internal/workflows"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose    bool
	debug      bool
	configPath string
	Logger     logger.Logger
)

// Register adds the global flags and every command group to root.
func Register(root *cobra.Command) {
	addGlobalFlags(root.PersistentFlags())
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		Logger = logger.Logger{
			Verbose: verbose,
			Debug:   debug,
		}
		Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
	}

	root.AddCommand(UserCmd)
	root.AddCommand(ChatCmd)
	root.AddCommand(MessageCmd)
	root.AddCommand(DeriveCmd)
	root.AddCommand(serveCmd)
	root.AddCommand(rpcCmd)
	root.AddCommand(logCmd)
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	fs.BoolVarP(&debug, "debug", "d", false, "enable debug output")
	fs.StringVar(&configPath, "config", "", "path to the config file (default "+configs.DefaultConfigPath()+")")
}

// environment is everything a command needs to run a workflow.
type environment struct {
	cfg   *configs.Config
	store *storage.Store
	svc   *workflows.Service
}

func (e *environment) Close() {
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		Logger.Warnf("Failed to close database: %v", err)
	}
}

func loadConfig() (*configs.Config, error) {
	Logger.Debugf("Loading config from %q", configPath)
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("Database: %s, audit log: %s", cfg.DatabasePath, cfg.AuditLogPath)
	return cfg, nil
}

// openEnvironment loads the config, opens the database and builds the service.
func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	Logger.Infof("Opened database %s", cfg.DatabasePath)

	return &environment{
		cfg:   cfg,
		store: store,
		svc:   workflows.New(store, cfg, Logger, audit.New(cfg.AuditLogPath)),
	}, nil
}

// Helper functions for testing

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	resetUserCommandState()
	resetChatCommandState()
	resetMessageCommandState()
	resetDeriveCommandState()
	resetRPCCommandState()
	resetLogCommandState()
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
