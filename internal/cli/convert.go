package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/sink"
)

// convertOpts holds the flags of the convert command.
type convertOpts struct {
	output    string
	format    string
	quality   int
	pageSize  string
	noCache   bool
	refresh   bool
	overwrite bool
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	opts := convertOpts{}

	cmd := &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert an image to png, jpg or a paginated pdf",
		Example: `  pageshot convert page.png -o page.pdf --page-size letter
  pageshot convert page.webp -f jpg -q 80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: input name with the format's extension)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpg or pdf")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "jpg quality 0-100")
	cmd.Flags().StringVar(&opts.pageSize, "page-size", "", "pdf page size: a4 or letter")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the export cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached exports")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace an existing output file")

	return cmd
}

func (c *CLI) runConvert(ctx context.Context, input string, opts convertOpts) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", input)
	}
	src, err := raster.Load(data)
	if err != nil {
		return err
	}

	export := c.config().ExportOptions()
	export.Format = formatForPath(opts.output, opts.format, export.Format)
	if opts.quality > 0 {
		export.Quality = opts.quality
	}
	if opts.pageSize != "" {
		export.PageSize = opts.pageSize
	}
	export.Refresh = opts.refresh
	export.Logger = c.Logger
	if err := export.ValidateAndSetDefaults(); err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + sink.Extension(export.Format)
	}
	if filepath.Clean(output) == filepath.Clean(input) && !opts.overwrite {
		return errors.New(errors.ErrCodeInvalidPath, "output %s would replace the input; pass -o or --overwrite", output)
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	out, hit, err := runner.Export(ctx, src, export)
	if err != nil {
		return err
	}
	path, err := writeFile(ctx, out, output, export.MIME(), opts.overwrite)
	if err != nil {
		return err
	}

	b := src.Bounds()
	printSuccess("Converted to %s", strings.ToUpper(export.Format))
	printStats(0, b.Dx(), b.Dy(), len(out), hit)
	printFile(path)
	return nil
}
