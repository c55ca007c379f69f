// Package downloader fetches post files into place, resuming interrupted
// downloads from where they stopped.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"e621dl/pkg/e621"
	"e621dl/pkg/logger"
	"e621dl/pkg/storage"
)

// Fetcher issues ranged GET requests
type Fetcher interface {
	FetchRange(ctx context.Context, url string, offset int64) (*http.Response, error)
}

// PostLookup fetches a post by id
type PostLookup interface {
	GetPost(ctx context.Context, id int64) (*e621.Post, error)
}

// Result describes one download attempt. A failed attempt leaves the partial
// file as it was before the request, apart from bytes already appended.
type Result struct {
	URL     string
	Path    string
	Status  int
	Offset  int64
	Written int64
	Size    int64
	// Err is set when the server or the network failed; the partial file
	// is kept for a later resume.
	Err      error
	Duration time.Duration
}

// OK reports whether the file was committed to its final path
func (r Result) OK() bool {
	return r.Err == nil
}

// Resumed reports whether the download continued an earlier partial file
func (r Result) Resumed() bool {
	return r.Offset > 0
}

// DefaultIdleTimeout is how long a response body may deliver nothing before
// the download is abandoned
const DefaultIdleTimeout = time.Minute

// ErrStalled is reported when a response body stops delivering data
var ErrStalled = errors.New("download stalled")

// Downloader runs resumable downloads
type Downloader struct {
	fetcher     Fetcher
	logger      logger.Logger
	idleTimeout time.Duration
}

// New creates a downloader that fetches through fetcher
func New(fetcher Fetcher, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{fetcher: fetcher, logger: log, idleTimeout: DefaultIdleTimeout}
}

// WithIdleTimeout sets how long a body may stall. Zero or less disables the check.
func (d *Downloader) WithIdleTimeout(idle time.Duration) *Downloader {
	d.idleTimeout = idle
	return d
}

// Download fetches url into dest. Bytes are appended to dest+".request",
// resuming from its current size, and the file is renamed to dest once the
// server has sent everything. Server and network failures are reported in
// the Result; only filesystem failures and cancellation are returned as
// errors.
func (d *Downloader) Download(ctx context.Context, url, dest string) (Result, error) {
	start := time.Now()
	partial := storage.PartialPath(dest)
	final := storage.FinalPath(partial)
	result := Result{URL: url, Path: final}

	f, err := os.OpenFile(partial, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return result, fmt.Errorf("failed to open partial download: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return result, fmt.Errorf("failed to stat partial download: %w", err)
	}
	result.Offset = info.Size()

	log := d.logger.WithFields(map[string]interface{}{
		"url":  url,
		"path": final,
	})
	if result.Resumed() {
		log.InfoWithFields("resuming download", map[string]interface{}{
			"offset": humanize.Bytes(uint64(result.Offset)),
		})
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := d.fetcher.FetchRange(reqCtx, url, result.Offset)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		result.Err = err
		result.Duration = time.Since(start)
		log.WithError(err).Warn("download request failed")
		return result, nil
	}
	defer resp.Body.Close()
	result.Status = resp.StatusCode

	body := watchStall(resp.Body, d.idleTimeout, cancel)
	defer body.stop()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		rangeStart, ok := contentRangeStart(resp.Header.Get("Content-Range"))
		if ok && rangeStart != result.Offset {
			result.Err = fmt.Errorf("server sent bytes from %d, wanted %d", rangeStart, result.Offset)
			break
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return result, fmt.Errorf("failed to seek partial download: %w", err)
		}
		if err := d.copyBody(ctx, f, body, &result); err != nil {
			return result, err
		}

	case http.StatusOK:
		if result.Offset > 0 {
			// range ignored, the body is the whole file
			log.Debug("server ignored range request, restarting download")
			if err := f.Truncate(0); err != nil {
				return result, fmt.Errorf("failed to truncate partial download: %w", err)
			}
			result.Offset = 0
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return result, fmt.Errorf("failed to seek partial download: %w", err)
		}
		if err := d.copyBody(ctx, f, body, &result); err != nil {
			return result, err
		}

	case http.StatusRequestedRangeNotSatisfiable:
		total, ok := contentRangeTotal(resp.Header.Get("Content-Range"))
		if !ok || total != result.Offset {
			result.Err = fmt.Errorf("range not satisfiable at offset %d", result.Offset)
		}

	default:
		result.Err = fmt.Errorf("download unavailable: status %d", resp.StatusCode)
	}

	result.Duration = time.Since(start)
	if result.Err != nil {
		log.WithError(result.Err).WarnWithFields("download not completed", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return result, nil
	}

	if err := f.Close(); err != nil {
		committed = true
		return result, fmt.Errorf("failed to close partial download: %w", err)
	}
	committed = true

	if err := os.Rename(partial, final); err != nil {
		return result, fmt.Errorf("failed to commit download: %w", err)
	}
	result.Size = result.Offset + result.Written

	log.DebugWithFields("download completed", map[string]interface{}{
		"size":     humanize.Bytes(uint64(result.Size)),
		"resumed":  result.Resumed(),
		"duration": result.Duration,
	})
	return result, nil
}

// copyBody appends the response body to f. A failed read leaves what was
// received in place and is reported on the result; a failed write is returned.
func (d *Downloader) copyBody(ctx context.Context, f *os.File, body io.Reader, result *Result) error {
	w := &trackingWriter{w: f}
	n, err := io.Copy(w, body)
	result.Written = n

	switch {
	case w.err != nil:
		return fmt.Errorf("failed to write partial download: %w", w.err)
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		result.Err = fmt.Errorf("download interrupted after %s: %w", humanize.Bytes(uint64(n)), err)
	}
	return nil
}

// stallWatch cancels the request once the body has delivered nothing for idle
type stallWatch struct {
	r       io.Reader
	idle    time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func watchStall(r io.Reader, idle time.Duration, cancel context.CancelFunc) *stallWatch {
	w := &stallWatch{r: r, idle: idle}
	if idle > 0 {
		w.timer = time.AfterFunc(idle, func() {
			w.stalled.Store(true)
			cancel()
		})
	}
	return w
}

func (w *stallWatch) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if err != nil && w.stalled.Load() {
		return n, ErrStalled
	}
	if w.timer != nil && n > 0 {
		w.timer.Reset(w.idle)
	}
	return n, err
}

func (w *stallWatch) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// contentRangeStart parses the first byte of "bytes <start>-<end>/<total>"
func contentRangeStart(header string) (int64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(first, 10, 64)
	return n, err == nil
}

// contentRangeTotal parses the total length of "bytes */<total>"
func contentRangeTotal(header string) (int64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, false
	}
	_, total, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	return n, err == nil
}

// RecoverPartials finishes every partial download below root. Each partial
// file's post is looked up by the id at the start of its name and downloaded
// into the same place. Problems with one file are logged and skipped.
func (d *Downloader) RecoverPartials(ctx context.Context, root string, lookup PostLookup) ([]Result, error) {
	partials, err := storage.ScanPartials(root)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, partial := range partials {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		log := d.logger.WithField("path", partial)
		log.Info("partial download found")

		id, err := storage.PartialPostID(partial)
		if err != nil {
			log.WithError(err).Warn("skipping partial download")
			continue
		}

		post, err := lookup.GetPost(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			log.WithError(err).Warn("could not look up post for partial download")
			continue
		}
		if post.FileURL == "" {
			log.Warn("post has no file url, skipping partial download")
			continue
		}

		result, err := d.Download(ctx, post.FileURL, storage.FinalPath(partial))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return results, err
			}
			log.WithError(err).Error("failed to resume partial download")
			continue
		}
		results = append(results, result)
	}

	return results, nil
}
