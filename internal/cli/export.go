package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/errors"
	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/raster"
	"github.com/matzehuels/pageshot/pkg/sink"
	"github.com/matzehuels/pageshot/pkg/store"
)

// exportOpts holds the flags of the export command.
type exportOpts struct {
	format    string
	quality   int
	pageSize  string
	outDir    string
	all       bool
	noCache   bool
	refresh   bool
	overwrite bool
	keep      bool
	clipboard bool
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOpts{}

	cmd := &cobra.Command{
		Use:   "export [capture-id]...",
		Short: "Export stored captures as png, jpg or pdf files",
		Long: `Export writes stored captures to files named
<hostname>_<YYYYMMDD-HHMMSS>_<mode>.<ext>.

Without ids an interactive picker lists the stored captures. Exported
captures are removed from the store unless --keep is given. --clipboard
copies a single capture to the clipboard as png instead of writing a file.`,
		Example: `  pageshot export 6f1c2e8a-... --format pdf --page-size letter
  pageshot export --all -f jpg -q 85 --out-dir shots/ --keep
  pageshot export 6f1c2e8a-... --clipboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpg or pdf (default: config)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "jpg quality 0-100")
	cmd.Flags().StringVar(&opts.pageSize, "page-size", "", "pdf page size: a4 or letter")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "d", "", "output directory (default: config)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "export every stored capture")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the export cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached exports")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "replace existing files")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "keep captures in the store after export")
	cmd.Flags().BoolVar(&opts.clipboard, "clipboard", false, "copy to the clipboard as png instead of writing a file")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, ids []string, opts exportOpts) error {
	cfg := c.config()
	export := cfg.ExportOptions()
	if opts.format != "" {
		export.Format = opts.format
	} else if opts.clipboard {
		export.Format = pipeline.FormatPNG
	}
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
	if opts.clipboard && export.Format != pipeline.FormatPNG {
		return errors.New(errors.ErrCodeUnsupportedFormat, "clipboard export is png only, got %s", export.Format)
	}
	outDir := opts.outDir
	if outDir == "" {
		outDir = cfg.Export.OutDir
	}

	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := c.selectCaptures(ctx, st, ids, opts.all)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		printInfo("No captures selected")
		return nil
	}
	if opts.clipboard && len(recs) > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "clipboard holds one capture, %d selected", len(recs))
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	jobs := make([]pipeline.Job, 0, len(recs))
	for _, rec := range recs {
		src, err := raster.Load(rec.Image)
		if err != nil {
			return fmt.Errorf("capture %s: %w", rec.ID, err)
		}
		jobs = append(jobs, pipeline.Job{Name: rec.ID, Source: src, Options: export})
	}

	results, err := runner.ExportBatch(ctx, jobs, batchLimit)
	if err != nil {
		return err
	}

	var out sink.Sink = sink.FileSink{Dir: outDir, Overwrite: opts.overwrite}
	if opts.clipboard {
		out = c.clipboardSink()
	}
	for i, res := range results {
		rec := recs[i]
		name := exportFilename(rec, len(recs) > 1)
		path, err := out.Save(ctx, res.Artifact, name, res.MIME)
		if err != nil {
			return err
		}
		printSuccess("Exported %s", StyleHighlight.Render(shortID(rec.ID)))
		printStats(0, rec.Width, rec.Height, len(res.Artifact), res.CacheHit)
		printFile(path)
		if opts.keep {
			continue
		}
		if err := st.Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("remove exported capture %s: %w", rec.ID, err)
		}
		c.Logger.Debug("removed exported capture", "id", rec.ID)
	}
	prog.done(fmt.Sprintf("Exported %d captures", len(results)))
	return nil
}

func (c *CLI) clipboardSink() sink.Sink {
	if c.clipboard != nil {
		return c.clipboard
	}
	return sink.ClipboardSink{}
}

// selectCaptures resolves the records to export: the given ids, every
// record with all, or an interactive pick.
func (c *CLI) selectCaptures(ctx context.Context, st store.Store, ids []string, all bool) ([]*store.Record, error) {
	if len(ids) > 0 {
		recs := make([]*store.Record, 0, len(ids))
		for _, id := range ids {
			rec, err := st.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		return recs, nil
	}

	recs, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	if all || len(recs) == 0 {
		return recs, nil
	}

	final, err := tea.NewProgram(NewCaptureListModel(recs, time.Now()), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("capture picker: %w", err)
	}
	return final.(CaptureListModel).Selected, nil
}

// exportFilename is the default filename, suffixed with the short id when
// several captures are written together.
func exportFilename(rec *store.Record, batch bool) string {
	name := sink.DefaultFilename(rec.URL, rec.CreatedAt, string(rec.Mode))
	if batch {
		name += "_" + shortID(rec.ID)
	}
	return name
}
