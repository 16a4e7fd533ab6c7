package main

import (
	"fmt"

	"github.com/aescanero/launchorch/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// globalOptions are the flags shared by every command
type globalOptions struct {
	envFile  string
	simulate bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "launchorch",
		Short: "Launch orchestration engine for Windows games",
		Long: `launchorch starts games the way a launcher does: it optionally waits for
the game client to validate files, activates the application, finds the
process it started and applies CPU priority and affinity.

Configuration comes from the environment (and an optional .env file).`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file (default .env)")
	cmd.PersistentFlags().BoolVar(&opts.simulate, "simulate", false, "Run against a simulated host instead of Windows")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newEntriesCmd(opts))

	return cmd
}

// loadConfig loads the configuration and applies global flags
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if o.simulate {
		cfg.Simulate = true
	}
	return cfg, nil
}

// initLogger initializes the logger based on log level
func initLogger(level string, development bool) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
