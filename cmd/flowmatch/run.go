// run.go - "flowmatch run": Fluss fuer ein Bildpaar berechnen
// Hauptfunktionen: newRunCmd, RunHandler
package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/7blacky7/flowmatch/envconfig"
	"github.com/7blacky7/flowmatch/flow"
	"github.com/7blacky7/flowmatch/flowio"
	"github.com/7blacky7/flowmatch/ml"
	_ "github.com/7blacky7/flowmatch/ml/backend/cpu"
	"github.com/7blacky7/flowmatch/vision"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run IMAGE0 IMAGE1",
		Short: "Estimate dense optical flow between two images",
		Args:  cobra.ExactArgs(2),
		RunE:  RunHandler,
	}

	cmd.Flags().String("config", "", "TOML run configuration file")
	cmd.Flags().StringP("output", "o", "flow.flo", "Output .flo file")
	cmd.Flags().String("viz", "", "Also write a color-coded PNG visualization")
	cmd.Flags().Bool("bidir", false, "Estimate forward and backward flow")
	cmd.Flags().String("checkpoint", "", "PyTorch checkpoint with trained weights")

	return cmd
}

// RunHandler - Laedt das Bildpaar, schaetzt den Fluss und schreibt .flo/PNG
func RunHandler(cmd *cobra.Command, args []string) error {
	cfg := defaultRunConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = loadRunConfig(path); err != nil {
			return err
		}
	}

	if bidir, _ := cmd.Flags().GetBool("bidir"); bidir {
		cfg.Bidirectional = true
	}
	if ckpt, _ := cmd.Flags().GetString("checkpoint"); ckpt != "" {
		cfg.Checkpoint = ckpt
	}

	backend, err := ml.NewBackend(envconfig.Backend(), ml.BackendParams{NumThreads: envconfig.NumThreads()})
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := backend.NewContext()
	defer ctx.Close()

	img0, img1, err := vision.LoadPair(args[0], args[1])
	if err != nil {
		return err
	}

	origW, origH := img0.Width, img0.Height

	multiple := cfg.inputMultiple()
	if img0, err = vision.ResizeToMultiple(img0, multiple); err != nil {
		return err
	}
	if img1, err = vision.ResizeToMultiple(img1, multiple); err != nil {
		return err
	}
	if img0.Width != origW || img0.Height != origH {
		slog.Info("input resized", "from", fmt.Sprintf("%dx%d", origW, origH),
			"to", fmt.Sprintf("%dx%d", img0.Width, img0.Height), "multiple", multiple)
	}

	t0, err := vision.ToTensor(ctx, img0)
	if err != nil {
		return err
	}
	t1, err := vision.ToTensor(ctx, img1)
	if err != nil {
		return err
	}

	model := flow.New(ctx,
		flow.WithNumScales(cfg.NumScales),
		flow.WithUpsampleFactor(cfg.UpsampleFactor),
		flow.WithFeatureChannels(cfg.channels()),
		flow.WithExtractor(&flow.PatchExtractor{PatchSize: cfg.PatchSize, NumScales: cfg.NumScales}),
	)

	if cfg.Checkpoint != "" {
		if err := model.LoadCheckpoint(ctx, cfg.Checkpoint); err != nil {
			return err
		}
	}

	start := time.Now()
	preds, err := model.EstimateFlow(ctx, t0, t1, cfg.Scales, cfg.Bidirectional)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	final := preds[len(preds)-1]
	forward := final
	if cfg.Bidirectional {
		forward = final.Slice(ctx, 0, 0, 1)
	}

	output, _ := cmd.Flags().GetString("output")
	if err := flowio.WriteFile(output, forward); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %s)\n", output,
		forward.Dim(3), forward.Dim(2), elapsed.Round(time.Millisecond))

	if cfg.Bidirectional {
		backward := final.Slice(ctx, 0, 1, 2)
		bwdPath := backwardPath(output)
		if err := flowio.WriteFile(bwdPath, backward); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", bwdPath)
	}

	if viz, _ := cmd.Flags().GetString("viz"); viz != "" {
		if err := flowio.WritePNG(viz, forward); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", viz)
	}

	return nil
}

// backwardPath leitet den Pfad des Rueckwaerts-Flusses ab: flow.flo -> flow_bwd.flo
func backwardPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_bwd" + ext
}
