package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/demo"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/sink"
	"github.com/matzehuels/pageshot/pkg/store"
)

// demoCommand creates the demo command.
func (c *CLI) demoCommand() *cobra.Command {
	var (
		outDir  string
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Store and save the demo capture",
		Long: `Demo draws the built-in 800x1200 demo capture, stores it like a real
capture and writes it as a PNG file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDemo(cmd.Context(), outDir, noStore)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "d", "", "output directory (default: config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "only write the file")

	return cmd
}

func (c *CLI) runDemo(ctx context.Context, outDir string, noStore bool) error {
	img, err := demo.Capture()
	if err != nil {
		return err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return err
	}
	rec, err := store.NewRecord(nil, data, store.Meta{
		URL:   demo.URL,
		Title: "Demo Capture",
		Mode:  capture.ModeViewport,
	})
	if err != nil {
		return err
	}

	if outDir == "" {
		outDir = c.config().Export.OutDir
	}
	out := sink.FileSink{Dir: outDir}
	path, err := out.Save(ctx, data, sink.DefaultFilename(rec.URL, rec.CreatedAt, string(rec.Mode)), raster.MIMEPNG)
	if err != nil {
		return err
	}

	if !noStore {
		st, err := c.newStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Put(ctx, rec); err != nil {
			return err
		}
		printSuccess("Stored demo capture %s", StyleHighlight.Render(rec.ID))
	} else {
		printSuccess("Drew demo capture")
	}
	printStats(1, rec.Width, rec.Height, len(data), false)
	printFile(path)
	if !noStore {
		printNextStep("Export as PDF", fmt.Sprintf("%s export %s -f pdf", appName, rec.ID))
	}
	return nil
}
