package sink

import (
	"context"
	"sync"

	"golang.design/x/clipboard"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// ClipboardTarget is the location ClipboardSink reports for a saved export.
const ClipboardTarget = "clipboard"

// ClipboardSink copies PNG exports to the system clipboard.
type ClipboardSink struct {
	// Write replaces the clipboard contents. Nil writes to the system
	// clipboard.
	Write func(png []byte) error
}

// Save puts data on the clipboard. Only image/png is accepted; filename is
// ignored.
func (s ClipboardSink) Save(ctx context.Context, data []byte, filename, mime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "nothing to save")
	}
	if mime != "image/png" {
		return "", errors.New(errors.ErrCodeUnsupportedFormat, "clipboard accepts png only, got %s", mime)
	}
	write := s.Write
	if write == nil {
		write = writeSystemClipboard
	}
	if err := write(data); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "copy to clipboard")
	}
	return ClipboardTarget, nil
}

var initClipboard = sync.OnceValue(clipboard.Init)

func writeSystemClipboard(png []byte) error {
	if err := initClipboard(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

var _ Sink = ClipboardSink{}
