package cli

import (
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/capture"
	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/stitch"
)

// stitchOpts holds the flags of the stitch command.
type stitchOpts struct {
	geometry   string
	pageHeight int
	dpr        float64
	output     string
	format     string
	quality    int
	pageSize   string
	overwrite  bool
}

// stitchCommand creates the stitch command.
func (c *CLI) stitchCommand() *cobra.Command {
	opts := stitchOpts{}

	cmd := &cobra.Command{
		Use:   "stitch <tile>...",
		Short: "Stitch viewport tiles into one image",
		Long: `Stitch composes viewport captures, given top to bottom, into a single image.

The page geometry comes either from a JSON file (--geometry) in the form
{"scroll_width":..,"scroll_height":..,"client_width":..,"client_height":..,
"device_pixel_ratio":..} or from --page-height and --dpr, in which case the
viewport size is taken from the first tile.`,
		Example: `  # Three 2x tiles of a 1500px tall page
  pageshot stitch t0.png t1.png t2.png --page-height 1500 --dpr 2 -o page.png

  # Straight to PDF
  pageshot stitch tiles/*.png --geometry geom.json -o page.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStitch(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.geometry, "geometry", "", "page geometry JSON file")
	cmd.Flags().IntVar(&opts.pageHeight, "page-height", 0, "scrollable page height in CSS pixels")
	cmd.Flags().Float64Var(&opts.dpr, "dpr", 1, "device pixel ratio of the tiles")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "stitched.png", "output file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpg or pdf (default: from output extension)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "jpg quality 0-100")
	cmd.Flags().StringVar(&opts.pageSize, "page-size", "", "pdf page size: a4 or letter")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace an existing output file")

	return cmd
}

func (c *CLI) runStitch(ctx context.Context, paths []string, opts stitchOpts) error {
	bitmaps := make([]*raster.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "read tile %s", p)
		}
		src, err := raster.Load(data)
		if err != nil {
			return err
		}
		bitmaps = append(bitmaps, src)
	}

	var (
		geom capture.PageGeometry
		err  error
	)
	if opts.geometry != "" {
		geom, err = readGeometry(opts.geometry)
	} else {
		geom, err = geometryFromTile(bitmaps[0].Bounds().Dx(), bitmaps[0].Bounds().Dy(), opts.pageHeight, opts.dpr)
	}
	if err != nil {
		return err
	}

	positions, err := tilePositions(geom, len(bitmaps))
	if err != nil {
		return err
	}
	tiles := make([]capture.Tile, len(bitmaps))
	for i, src := range bitmaps {
		tiles[i] = capture.Tile{Bitmap: src.Image, Position: positions[i]}
	}

	img, err := stitch.Stitch(geom, tiles)
	if err != nil {
		return err
	}
	c.Logger.Debug("stitched tiles", "tiles", len(tiles), "width", img.Width, "height", img.Height)

	export := pipeline.Options{
		Format:   formatForPath(opts.output, opts.format, c.config().Export.Format),
		Quality:  opts.quality,
		PageSize: opts.pageSize,
	}
	data, err := pipeline.Encode(raster.FromImage(img.Pix), export)
	if err != nil {
		return err
	}
	path, err := writeFile(ctx, data, opts.output, export.MIME(), opts.overwrite)
	if err != nil {
		return err
	}

	printSuccess("Stitched %d tiles", len(tiles))
	printStats(len(tiles), img.Width, img.Height, len(data), false)
	printFile(path)
	return nil
}

func readGeometry(path string) (capture.PageGeometry, error) {
	var geom capture.PageGeometry
	data, err := os.ReadFile(path)
	if err != nil {
		return geom, errors.Wrap(errors.ErrCodeInvalidPath, err, "read geometry %s", path)
	}
	if err := json.Unmarshal(data, &geom); err != nil {
		return geom, errors.Wrap(errors.ErrCodeInvalidGeometry, err, "parse geometry %s", path)
	}
	if geom.DevicePixelRatio == 0 {
		geom.DevicePixelRatio = 1
	}
	return geom, geom.Validate()
}

// geometryFromTile derives a page geometry from the first tile's device
// pixel size.
func geometryFromTile(tileWidth, tileHeight, pageHeight int, dpr float64) (capture.PageGeometry, error) {
	if err := capture.ValidateDevicePixelRatio(dpr); err != nil {
		return capture.PageGeometry{}, err
	}
	w := int(math.Round(float64(tileWidth) / dpr))
	h := int(math.Round(float64(tileHeight) / dpr))
	geom := capture.PageGeometry{
		ScrollWidth:      w,
		ScrollHeight:     pageHeight,
		ClientWidth:      w,
		ClientHeight:     h,
		DevicePixelRatio: dpr,
	}
	return geom, geom.Validate()
}

// tilePositions returns where a browser lands when scrolled to each tile
// offset: the last scroll is clamped to the bottom of the page.
func tilePositions(geom capture.PageGeometry, n int) ([]capture.Position, error) {
	offsets := geom.TileOffsets()
	if len(offsets) != n {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"page of height %d needs %d tiles of height %d, got %d",
			geom.ScrollHeight, len(offsets), geom.ClientHeight, n)
	}
	maxY := max(geom.ScrollHeight-geom.ClientHeight, 0)
	positions := make([]capture.Position, n)
	for i, y := range offsets {
		positions[i] = capture.Position{Y: min(y, maxY)}
	}
	return positions, nil
}
