package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// RefPrefix is the path under which persisted videos are served.
const RefPrefix = "/videos/"

// ErrUnsafeFilename is returned when a requested file name could escape the
// video directory.
var ErrUnsafeFilename = errors.New("video: unsafe filename")

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// Transfer downloads remote content to a local path and builds API URLs.
type Transfer interface {
	Download(ctx context.Context, rawURL, destPath string) error
	URL(segments ...string) string
}

// Artifact is a persisted video.
type Artifact struct {
	// Ref is the served reference, "/videos/<file>".
	Ref string
	// Path is the absolute-or-relative file path on disk.
	Path string
	// Strategy names the download route that succeeded.
	Strategy string
}

// Downloader persists a job's artifact into a local directory, trying each
// applicable download route in turn.
type Downloader struct {
	transfer Transfer
	dir      string
	logger   *slog.Logger
}

// NewDownloader creates a Downloader writing into dir, creating it if needed.
func NewDownloader(transfer Transfer, dir string, logger *slog.Logger) (*Downloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("video: create output directory: %w", err)
	}
	return &Downloader{transfer: transfer, dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (d *Downloader) Dir() string { return d.dir }

type downloadRoute struct {
	name string
	url  string
	ext  string
}

// Persist stores the artifact of jobID. Routes are tried in order: the
// descriptor's file_id, its asset_id, its direct URL, then the job's own
// content endpoint. Every failure is logged and the next route tried.
// ok is false when all routes fail.
func (d *Downloader) Persist(ctx context.Context, jobID string, desc *Descriptor, opts Options) (Artifact, bool) {
	for _, route := range d.routes(jobID, desc, opts) {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("video download abandoned",
				slog.String("video_id", jobID),
				slog.String("error", err.Error()),
			)
			return Artifact{}, false
		}

		filename := SafeFilename(jobID) + "." + route.ext
		dest := filepath.Join(d.dir, filename)
		if err := d.transfer.Download(ctx, route.url, dest); err != nil {
			d.logger.Warn("video download failed",
				slog.String("video_id", jobID),
				slog.String("strategy", route.name),
				slog.String("error", err.Error()),
			)
			continue
		}

		d.logger.Info("video saved",
			slog.String("video_id", jobID),
			slog.String("strategy", route.name),
			slog.String("path", dest),
		)
		return Artifact{Ref: RefPrefix + filename, Path: dest, Strategy: route.name}, true
	}
	return Artifact{}, false
}

func (d *Downloader) routes(jobID string, desc *Descriptor, opts Options) []downloadRoute {
	var routes []downloadRoute
	if desc != nil {
		ext := InferExtension(desc, opts)
		if id := desc.FileID(); id != "" {
			routes = append(routes, downloadRoute{name: "file", url: d.transfer.URL("files", id, "content"), ext: ext})
		}
		if id := desc.AssetID(); id != "" {
			routes = append(routes, downloadRoute{name: "asset", url: d.transfer.URL("assets", id, "content"), ext: ext})
		}
		if u := desc.URL(); u != "" {
			routes = append(routes, downloadRoute{name: "direct_url", url: u, ext: ext})
		}
	}
	routes = append(routes, downloadRoute{
		name: "video_content",
		url:  d.transfer.URL("videos", jobID, "content"),
		ext:  InferExtension(nil, opts),
	})
	return routes
}

// SafeFilename replaces every character outside [a-zA-Z0-9-_.] with "_".
func SafeFilename(id string) string {
	return unsafeFilenameChars.ReplaceAllString(id, "_")
}

// ResolveLocal maps a served file name to a path inside dir. Names with
// path separators or "..", or that would resolve outside dir, are rejected.
func ResolveLocal(dir, name string) (string, error) {
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}

	base, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("video: resolve directory: %w", err)
	}
	full := filepath.Join(base, name)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}
	return full, nil
}
