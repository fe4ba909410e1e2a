package cli

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/demo"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/store"
)

// demoPageHeight is the height of the striped demo page used when capture
// runs without an input image.
const demoPageHeight = 2400

// captureOpts holds the flags of the capture command.
type captureOpts struct {
	mode           string
	url            string
	title          string
	source         string
	viewportWidth  int
	viewportHeight int
	dpr            float64
}

// captureCommand creates the capture command.
func (c *CLI) captureCommand() *cobra.Command {
	opts := captureOpts{}

	cmd := &cobra.Command{
		Use:   "capture [page-image]",
		Short: "Capture a rendered page through a simulated viewport",
		Long: `Capture scrolls a simulated browser viewport over a rendered page image,
captures one tile per viewport, stitches the tiles and stores the result.

Without an image the built-in demo page is captured.`,
		Example: `  # Capture a full-page render at 2x
  pageshot capture page.png --dpr 2 --url https://example.com/

  # Capture only the first viewport
  pageshot capture page.png --mode viewport`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return c.runCapture(cmd.Context(), path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(capture.ModeFullPage), "capture mode: fullpage or viewport")
	cmd.Flags().StringVar(&opts.url, "url", "", "page URL recorded with the capture")
	cmd.Flags().StringVar(&opts.title, "title", "", "page title recorded with the capture")
	cmd.Flags().StringVar(&opts.source, "source", "", "source identifier (e.g. a tab id)")
	cmd.Flags().IntVar(&opts.viewportWidth, "viewport-width", 0, "viewport width in CSS pixels (default: config, or page width)")
	cmd.Flags().IntVar(&opts.viewportHeight, "viewport-height", 0, "viewport height in CSS pixels (default: config)")
	cmd.Flags().Float64Var(&opts.dpr, "dpr", 0, "device pixel ratio of the page image (default: config)")

	return cmd
}

func (c *CLI) runCapture(ctx context.Context, path string, opts captureOpts) error {
	mode, err := capture.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if err := errors.ValidateURL(opts.url); err != nil {
		return err
	}

	page, err := loadPage(path)
	if err != nil {
		return err
	}
	if path == "" && opts.url == "" {
		opts.url = demo.URL
	}

	frame := c.frameOptions()
	if opts.viewportWidth > 0 {
		frame.ViewportWidth = opts.viewportWidth
	}
	if opts.viewportHeight > 0 {
		frame.ViewportHeight = opts.viewportHeight
	}
	if opts.dpr > 0 {
		frame.DevicePixelRatio = opts.dpr
	}

	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := c.newRunner(ctx, true)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Capturing page...")
	spinner.Start()
	shot, err := runner.CapturePage(ctx, page, mode, frame)
	spinner.Stop()
	if err != nil {
		return err
	}

	encoded, err := raster.EncodePNG(shot.Source.Image)
	if err != nil {
		return err
	}
	rec, err := store.NewRecord(nil, encoded, store.Meta{
		SourceID:         opts.source,
		URL:              opts.url,
		Title:            opts.title,
		DevicePixelRatio: shot.DevicePixelRatio,
		Mode:             shot.Mode,
	})
	if err != nil {
		return err
	}
	if err := st.Put(ctx, rec); err != nil {
		return err
	}

	printSuccess("Captured %s", StyleHighlight.Render(rec.ID))
	printStats(shot.Tiles, rec.Width, rec.Height, len(rec.Image), false)
	printNextStep("Export", fmt.Sprintf("%s export %s --format pdf", appName, rec.ID))
	return nil
}

// loadPage reads the page image at path, or draws the demo page.
func loadPage(path string) (image.Image, error) {
	if path == "" {
		return demo.Page(demo.Width, demoPageHeight)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	src, err := raster.Load(data)
	if err != nil {
		return nil, err
	}
	return src.Image, nil
}
