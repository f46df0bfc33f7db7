package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/sam/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	var (
		skipChecksum bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.born>",
		Short: "Show the header of a .born model or checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := serialization.ReadFile(args[0], serialization.ReaderOptions{
				SkipChecksumValidation: skipChecksum,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(f.Header)
			}
			return printHeader(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "do not verify the data checksum")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON header")
	return cmd
}

func printHeader(w io.Writer, f *serialization.File) error {
	h := f.Header
	fmt.Fprintf(w, "Kind:       %s\n", h.Kind)
	fmt.Fprintf(w, "Model:      %s\n", h.ModelType)
	fmt.Fprintf(w, "Format:     v%d\n", h.FormatVersion)
	fmt.Fprintf(w, "Producer:   %s\n", h.Producer)
	fmt.Fprintf(w, "Created:    %s\n", h.CreatedAt.Format(time.RFC3339))

	if cm := h.CheckpointMeta; cm != nil {
		fmt.Fprintf(w, "Run:        %s\n", cm.RunID)
		fmt.Fprintf(w, "Optimizer:  %s\n", cm.OptimizerType)
		fmt.Fprintf(w, "Epoch:      %d\n", cm.Epoch)
		fmt.Fprintf(w, "Step:       %d\n", cm.Step)
		fmt.Fprintf(w, "Loss:       %.6f\n", cm.Loss)
		if len(cm.OptimizerGroups) > 0 {
			fmt.Fprintf(w, "Groups:     %s\n", cm.OptimizerGroups)
		}
	}

	fmt.Fprintf(w, "\nTensors (%d):\n", len(h.Tensors))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tDTYPE\tSHAPE\tBYTES")
	for _, t := range h.Tensors {
		fmt.Fprintf(tw, "  %s\t%s\t%v\t%d\n", t.Name, t.DType, t.Shape, t.Size)
	}
	return tw.Flush()
}
