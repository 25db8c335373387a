package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jaysonsantos/tremor-runtime/componentregistry"
	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/system"
)

func runCommand(flags *globalFlags) *cobra.Command {
	var metricsPort int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the configured onramps, pipelines and offramps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if metricsPort != 0 {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Port = metricsPort
			}

			regs, err := componentregistry.New()
			if err != nil {
				return err
			}

			logger := slog.Default()
			logger.Info("Starting tremor",
				"version", Version,
				"build_time", BuildTime,
				"config_path", flags.ConfigPath)

			world, err := system.New(cfg, system.Deps{
				Onramps:         regs.Onramps,
				Offramps:        regs.Offramps,
				Operators:       regs.Operators,
				Logger:          logger,
				MetricsRegistry: metric.NewMetricsRegistry(),
				Grace:           flags.ShutdownTimeout,
			})
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			if err := world.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			logger.Info("tremor shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&metricsPort, "metrics-port", getEnvInt("TREMOR_METRICS_PORT", 0),
		"Serve Prometheus metrics on this port, overriding the config (env: TREMOR_METRICS_PORT)")
	return cmd
}

func validateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check the configuration and every artefact it declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			regs, err := componentregistry.New()
			if err != nil {
				return err
			}
			if err := checkTypes(cfg, regs); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d onramps, %d pipelines, %d offramps, %d bindings\n",
				flags.ConfigPath, len(cfg.Onramps), len(cfg.Pipelines), len(cfg.Offramps), len(cfg.Bindings))
			return nil
		},
	}
}

// checkTypes resolves every artefact type without acquiring resources
func checkTypes(cfg *config.Config, regs componentregistry.Registries) error {
	for _, o := range cfg.Onramps {
		if _, err := regs.Onramps.Lookup(o.Type); err != nil {
			return err
		}
	}
	for _, o := range cfg.Offramps {
		if _, err := regs.Offramps.Lookup(o.Type); err != nil {
			return err
		}
	}
	for _, p := range cfg.Pipelines {
		for _, n := range p.Nodes {
			if _, err := regs.Operators.Lookup(n.Op); err != nil {
				return err
			}
		}
	}
	return nil
}
