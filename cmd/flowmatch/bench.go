// bench.go - "flowmatch bench": Durchsatz-Messung auf synthetischen Bildern
// Hauptfunktionen: newBenchCmd, BenchHandler
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/flowmatch/envconfig"
	"github.com/7blacky7/flowmatch/flow"
	"github.com/7blacky7/flowmatch/ml"
	_ "github.com/7blacky7/flowmatch/ml/backend/cpu"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark flow estimation on synthetic image pairs",
		RunE:  BenchHandler,
	}

	cmd.Flags().String("config", "", "TOML run configuration file")
	cmd.Flags().Int("iters", 3, "Iterations per image size")
	cmd.Flags().IntSlice("sizes", []int{64, 128, 256}, "Square image sizes to benchmark")

	return cmd
}

// BenchHandler - Misst die Laufzeit der Fluss-Schaetzung pro Bildgroesse
func BenchHandler(cmd *cobra.Command, args []string) error {
	cfg := defaultRunConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = loadRunConfig(path); err != nil {
			return err
		}
	}

	iters, _ := cmd.Flags().GetInt("iters")
	sizes, _ := cmd.Flags().GetIntSlice("sizes")

	backend, err := ml.NewBackend(envconfig.Backend(), ml.BackendParams{NumThreads: envconfig.NumThreads()})
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := backend.NewContext()
	defer ctx.Close()

	model := flow.New(ctx,
		flow.WithNumScales(cfg.NumScales),
		flow.WithUpsampleFactor(cfg.UpsampleFactor),
		flow.WithFeatureChannels(cfg.channels()),
		flow.WithExtractor(&flow.PatchExtractor{PatchSize: cfg.PatchSize, NumScales: cfg.NumScales}),
	)

	var data [][]string
	multiple := cfg.inputMultiple()

	for _, size := range sizes {
		if size%multiple != 0 {
			return fmt.Errorf("size %d not divisible by %d", size, multiple)
		}

		img0 := syntheticImage(ctx, size)
		img1 := syntheticImage(ctx, size)

		var total, min time.Duration
		for i := 0; i < iters; i++ {
			start := time.Now()
			if _, err := model.EstimateFlow(ctx, img0, img1, cfg.Scales, cfg.Bidirectional); err != nil {
				return err
			}
			elapsed := time.Since(start)

			total += elapsed
			if min == 0 || elapsed < min {
				min = elapsed
			}
		}

		avg := total / time.Duration(iters)
		data = append(data, []string{
			fmt.Sprintf("%dx%d", size, size),
			fmt.Sprintf("%d", cfg.NumScales),
			fmt.Sprintf("%d", iters),
			avg.Round(time.Millisecond).String(),
			min.Round(time.Millisecond).String(),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"SIZE", "SCALES", "ITERS", "AVG", "MIN"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// syntheticImage erzeugt einen glatten Farbverlauf als (1, 3, size, size) Bild
func syntheticImage(ctx ml.Context, size int) ml.Tensor {
	ramp := ctx.Arange(0, float32(3*size*size), 1, ml.DTypeF32)
	return ramp.Scale(ctx, 1.0/float64(3*size*size)).Reshape(ctx, 1, 3, size, size)
}
