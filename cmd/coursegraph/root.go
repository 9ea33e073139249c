package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"coursegraph-backend/infrastructure/config"
	"coursegraph-backend/infrastructure/di"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath string
	engineName string
)

// errDivergent makes the process exit non-zero when an audit finds damage.
var errDivergent = errors.New("index views diverge")

var rootCmd = &cobra.Command{
	Use:           "coursegraph",
	Short:         "Maintain the courseware and competency store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "", "Storage engine override (memory or dynamodb)")

	rootCmd.AddCommand(migrateCmd, auditCmd, repairCmd)
}

// loadConfig applies the command line overrides on top of Load.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if engineName != "" {
		cfg.Store.Engine = engineName
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// withContainer builds the container for one command and closes it after.
func withContainer(ctx context.Context, fn func(*di.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer c.Close(ctx)
	return fn(c)
}

func printReport(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
