package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/galah-project/galah-cli/internal/adapters/galahapi"
	"github.com/galah-project/galah-cli/internal/adapters/render"
	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/ports"
)

const (
	downloadChunkSize   = 4096
	downloadPollTimeout = time.Second
	downloadSettleDelay = 500 * time.Millisecond
	downloadWaitFrames  = 40
	downloadFrameDelay  = 100 * time.Millisecond
	progressBarWidth    = 20
)

// Downloader retrieves a file the server has prepared, polling until the
// server is ready to serve it. The loop has no retry ceiling on purpose:
// the server may still be generating the file. Callers wanting a bound
// impose one through ctx.
type Downloader struct {
	api    *galahapi.Client
	clock  ports.Clock
	sink   ports.ProgressSink
	logger *slog.Logger
	dir    string
}

func NewDownloader(api *galahapi.Client, clock ports.Clock, sink ports.ProgressSink, logger *slog.Logger, downloadsDir string) *Downloader {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if sink == nil {
		sink = ports.NopSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Downloader{api: api, clock: clock, sink: sink, logger: logger, dir: downloadsDir}
}

// Download fetches url into the downloads directory under suggestedName,
// disambiguated against existing files, and returns the final path. A
// cancelled ctx aborts between chunks and polls; any partial file is left
// on disk for the caller to deal with.
func (d *Downloader) Download(ctx context.Context, url, suggestedName string) (string, error) {
	targetPath := findAvailablePath(filepath.Join(d.dir, suggestedName))
	d.logger.Debug("download target chosen", "path", targetPath)

	waitBar, err := render.NewIndeterminate(progressBarWidth)
	if err != nil {
		return "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		d.sink.Frame(render.Bar(0, progressBarWidth) + " Trying to download file...")

		resp, err := d.api.PollDownload(ctx, url, downloadPollTimeout)
		if err != nil {
			if errors.Is(err, galahapi.ErrPollTimeout) {
				// Server did not accept the connection yet; poll again.
				d.logger.Debug("download poll timed out, server not ready")
				if err := d.waitNotReady(ctx, waitBar); err != nil {
					return "", err
				}
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &domain.TransportError{URL: url, Err: err}
		}

		done, err := d.handleResponse(ctx, resp, targetPath)
		if err != nil {
			return "", err
		}
		if done {
			return targetPath, nil
		}

		if err := d.waitNotReady(ctx, waitBar); err != nil {
			return "", err
		}
	}
}

// handleResponse consumes one poll response. done is true once the file
// has been fully streamed to disk.
func (d *Downloader) handleResponse(ctx context.Context, resp *http.Response, targetPath string) (bool, error) {
	defer func() { _ = resp.Body.Close() }()

	// An application-level failure flag or a 500 is terminal, whatever
	// the rest of the response says.
	if resp.StatusCode == http.StatusInternalServerError ||
		resp.Header.Get(galahapi.HeaderCallSuccess) == "False" {
		return false, fmt.Errorf("%w (HTTP %d)", domain.ErrDownloadServer, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	expected := resp.ContentLength
	if expected < 0 {
		d.logger.Info("file is of unknown size")
		d.sink.Frame(render.Bar(-1, progressBarWidth) + " Downloading file.")
	}

	if err := d.streamBody(ctx, resp.Body, targetPath, expected); err != nil {
		return false, err
	}
	return true, nil
}

// streamBody appends chunks to the target file strictly in receipt order,
// advancing the progress bar as the received/expected fraction.
func (d *Downloader) streamBody(ctx context.Context, body io.Reader, targetPath string, expected int64) error {
	file, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var received int64
	buf := make([]byte, downloadChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write download file: %w", werr)
			}
			received += int64(n)
			if expected > 0 {
				fraction := float64(received) / float64(expected)
				d.sink.Frame(render.Bar(fraction, progressBarWidth) + " Downloading file.")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &domain.TransportError{URL: targetPath, Err: err}
		}
	}

	return file.Close()
}

// waitNotReady renders the settle delay and the waiting animation between
// polls.
func (d *Downloader) waitNotReady(ctx context.Context, bar *render.Indeterminate) error {
	if err := d.clock.Sleep(ctx, downloadSettleDelay); err != nil {
		return err
	}
	for i := 0; i < downloadWaitFrames; i++ {
		d.sink.Frame(bar.Next() + " Download not ready yet. Waiting.")
		if err := d.clock.Sleep(ctx, downloadFrameDelay); err != nil {
			return err
		}
	}
	return nil
}

// findAvailablePath returns path itself when free, otherwise the first
// variant with a parenthesized counter before the extension:
// report.pdf, report (1).pdf, report (2).pdf, ... Existing files are
// never touched.
func findAvailablePath(path string) string {
	dir, name := filepath.Split(path)

	candidate := path
	for count := 1; ; count++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(dir, postfixFileName(name, fmt.Sprintf(" (%d)", count)))
	}
}

// postfixFileName inserts suffix between the file name and its extension:
// postfixFileName("report.pdf", " (1)") == "report (1).pdf".
func postfixFileName(name, suffix string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + suffix + ext
}
