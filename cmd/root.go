package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/catalog"
	"github.com/BetterCallFirewall/pscan/internal/config"
	"github.com/BetterCallFirewall/pscan/internal/logging"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
	"github.com/BetterCallFirewall/pscan/internal/pscan/rules"
)

// globalOptions значения persistent флагов корневой команды
type globalOptions struct {
	debug bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "pscan",
		Short:         "pscan - intercepting proxy with passive security scan rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd(opts), newCheckCmd(opts), newRulesCmd(opts))
	return root
}

func Execute() {
	cobra.CheckErr(newRootCmd().Execute())
}

// env общие зависимости команд
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *pscan.Registry
}

func setup(opts *globalOptions) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(opts.debug || cfg.Debug)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Scanner.MessagesFile)
	if err != nil {
		return nil, err
	}

	registry := pscan.NewRegistry()
	if err := rules.RegisterDefaults(registry, cat, logger.Named("rules")); err != nil {
		return nil, fmt.Errorf("register rules: %w", err)
	}
	if err := registry.ApplyThresholds(cfg.Scanner.Rules); err != nil {
		return nil, fmt.Errorf("apply rule thresholds: %w", err)
	}

	return &env{cfg: cfg, logger: logger, registry: registry}, nil
}
