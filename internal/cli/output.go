package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pageshot/pkg/pipeline"
	"github.com/matzehuels/pageshot/pkg/sink"
)

// formatForPath picks the export format: an explicit format wins, then the
// output file's extension, then fallback.
func formatForPath(path, format, fallback string) string {
	if format != "" {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return pipeline.FormatPNG
	case ".jpg", ".jpeg":
		return pipeline.FormatJPEG
	case ".pdf":
		return pipeline.FormatPDF
	}
	return fallback
}

// writeFile saves data at path through a FileSink.
func writeFile(ctx context.Context, data []byte, path, mime string, overwrite bool) (string, error) {
	s := sink.FileSink{Dir: filepath.Dir(path), Overwrite: overwrite}
	return s.Save(ctx, data, filepath.Base(path), mime)
}
