package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		addr         string
		logLevel     string
		headless     bool
		scenarioID   string
		scenarioFile string
		seed         int64
		maxSteps     int
		vehicleCount int
	)

	cmd := &cobra.Command{
		Use:   "twinsim",
		Short: "Dual-twin traffic signal simulation",
		Long: "Runs an adaptive signal policy and a fixed-cycle baseline in lockstep\n" +
			"over identical traffic and reports the comparison.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			GetLogger().SetLevel(ParseLogLevel(cfg.LogLevel))

			if cmd.Flags().Changed("scenario-file") {
				cfg.ScenarioFile = scenarioFile
			}
			if cfg.ScenarioFile != "" {
				custom, err := LoadScenarioFile(cfg.ScenarioFile)
				if err != nil {
					return err
				}
				if err := RegisterScenario(custom); err != nil {
					return err
				}
				GetLogger().Infof("registered scenario %s from %s", custom.ID, cfg.ScenarioFile)
				// A loaded file becomes the default scenario unless one was
				// named explicitly.
				if !cmd.Flags().Changed("scenario") {
					cfg.Scenario = custom.ID
				}
			}

			params := InitParams{
				ScenarioID:   scenarioID,
				Seed:         seed,
				MaxSteps:     maxSteps,
				VehicleCount: vehicleCount,
			}
			manager := NewRunManager(cfg)

			if headless {
				report, err := manager.RunToCompletion(params)
				if err != nil {
					return err
				}
				PrintComparison(report)
				return nil
			}
			return serve(cfg, manager)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (error, warn, info, debug)")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run one session to completion and print the summary")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "Scenario id (defaults from config)")
	cmd.Flags().StringVar(&scenarioFile, "scenario-file", "", "Path to a custom scenario YAML added to the catalog")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Shared random seed for both twins")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Maximum steps per run")
	cmd.Flags().IntVar(&vehicleCount, "vehicle-count", 0, "Approximate background vehicle volume")

	cmd.AddCommand(newScenariosCmd())
	return cmd
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range GetScenarios() {
				fmt.Printf("%-18s %-10s agents=%s  %s\n", s.ID, s.Complexity, s.Agents, s.Name)
			}
		},
	}
}

func serve(cfg Config, manager *RunManager) error {
	server := NewWebServer(cfg.Addr, manager)
	if err := server.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	GetLogger().Infof("shutting down")
	if err := manager.Stop(); err != nil {
		GetLogger().Warnf("stop run: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
