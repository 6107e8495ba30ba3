// Package main replays the transaction propagation scenarios against the
// in-memory store and reports the physical begin/commit/rollback counts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"txscope/internal/scenario"
	"txscope/pkg/logger"
)

func main() {
	cmd := createRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scenarios [name...]",
		Short: "Replay transaction propagation scenarios",
		Long: `Replays the propagation scenarios against the in-memory store.
Without arguments every scenario runs. The command fails when any scenario
produces an error or unexpected begin/commit/rollback counts.`,
		RunE:          runScenarios,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().Bool("dev", true, "human-readable log output")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Run: func(_ *cobra.Command, _ []string) {
			for _, s := range scenario.All() {
				fmt.Printf("%-28s %s\n", s.Name, s.Description)
			}
		},
	}
	root.AddCommand(listCmd)

	return root
}

func runScenarios(cmd *cobra.Command, args []string) error {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	dev, err := cmd.Flags().GetBool("dev")
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: level, Development: dev})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	selected := scenario.All()
	if len(args) > 0 {
		selected = selected[:0]
		for _, name := range args {
			s, ok := scenario.Find(name)
			if !ok {
				return fmt.Errorf("unknown scenario %q", name)
			}
			selected = append(selected, s)
		}
	}

	ctx := logger.WithLogger(context.Background(), log.WithComponent("scenarios"))
	failed := 0
	for _, s := range selected {
		res := scenario.Run(ctx, s)
		if !res.Passed {
			failed++
			log.Errorw("scenario failed",
				"scenario", res.Name,
				"got", res.Stats,
				"want", res.Want,
				"error", res.Err,
			)
		}
	}

	log.Infow("scenarios complete", "total", len(selected), "failed", failed)
	if failed > 0 {
		err := fmt.Errorf("%d of %d scenarios failed", failed, len(selected))
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
