package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// TempSuffix is appended to the target name while the body is being
// streamed, so an earlier completed download of the same name is never
// clobbered by a partial write.
const TempSuffix = ".mirrorurl-part"

const chunkSize = 32 * 1024

// Writer streams response bodies to files
type Writer struct {
	// Delay is an optional pause inserted after opening the file and after
	// every chunk write, to make concurrency interleavings observable in
	// tests. Zero disables it.
	Delay time.Duration

	log *logrus.Entry
}

// NewWriter creates a Writer
func NewWriter(delay time.Duration, log *logrus.Entry) *Writer {
	return &Writer{
		Delay: delay,
		log:   log,
	}
}

// WriteFile streams body to path. Missing parent directories are created
// first. The body is written to a sibling temp file which is renamed onto
// path only once fully written, so path always holds either a complete prior
// download or a complete new one. On any failure the temp file is removed
// and the error returned. Returns the number of bytes written.
func (w *Writer) WriteFile(ctx context.Context, body io.Reader, path string) (int64, error) {
	if err := CreateDirectories(filepath.Dir(path)); err != nil {
		return 0, err
	}

	tmpPath := path + TempSuffix

	file, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	w.delay(ctx)

	written, err := w.copyChunks(ctx, file, body)

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(tmpPath)

		return written, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return written, fmt.Errorf("failed to move %s to %s: %w", tmpPath, path, err)
	}

	return written, nil
}

// copyChunks copies body to file in fixed-size chunks, applying the debug
// delay between writes and honouring context cancellation.
func (w *Writer) copyChunks(ctx context.Context, file *os.File, body io.Reader) (int64, error) {
	var written int64

	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := body.Read(buf)

		if n > 0 {
			w.log.Tracef("Read %d bytes", n)

			wn, writeErr := file.Write(buf[:n])
			written += int64(wn)

			if writeErr != nil {
				return written, writeErr
			}

			w.delay(ctx)
		}

		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}

			return written, readErr
		}
	}
}

func (w *Writer) delay(ctx context.Context) {
	if w.Delay <= 0 {
		return
	}

	select {
	case <-time.After(w.Delay):
	case <-ctx.Done():
	}
}
