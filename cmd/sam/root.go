package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/born-ml/sam/internal/config"
	"github.com/born-ml/sam/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sam",
		Short: "Sharpness-Aware Minimization for Born",
		Long: `sam trains small models with Sharpness-Aware Minimization (SAM) wrapped
around SGD or Adam, and inspects the .born checkpoints it writes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newTrainCmd(),
		newBigramCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

// newLogger builds the run logger from the log section of cfg, writing console output to w.
func newLogger(cfg config.Log, w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.JSON,
		Service: cfg.Service,
		LogDir:  cfg.Dir,
		Output:  w,
	}), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sam %s\n", version)
		},
	}
}
