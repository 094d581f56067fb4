package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newTrainCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train a model from the rating store and persist it to model_path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// Always train fresh: a persisted model is the output here, not the input.
			cfg.Recommender.LoadModelOnStart = false

			a, err := newApp(cmd.Context(), cfg, logger, appOptions{forceSync: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("train: %w", err)
			}
			return printJSON(cmd, a.engine.Status())
		},
	}
}

func newEvaluateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Report hold-out AUC for the configured hyperparameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger, appOptions{forceSync: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("initialize engine: %w", err)
			}
			report, err := a.engine.Evaluate(cmd.Context())
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			return printJSON(cmd, report)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
