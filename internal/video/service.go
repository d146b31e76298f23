package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
	"github.com/maauso/dreamvisualizer-api/internal/prompt"
)

// Static errors for video generation.
var (
	// ErrMissingJobID is returned when the submission reply carries no id.
	ErrMissingJobID = errors.New("video: submission response missing id")
	// ErrEmptyPrompt is returned when the package has no primary prompt.
	ErrEmptyPrompt = errors.New("video: prompt is empty")
	// ErrInvalidOptions is returned when generation options fail validation.
	ErrInvalidOptions = errors.New("video: invalid options")
	// ErrCancelled is returned when the context ends after polling, while
	// the artifact is being located, downloaded or mirrored.
	ErrCancelled = errors.New("video: generation cancelled")
)

// API is the subset of the remote client used by the service.
type API interface {
	PostJSON(ctx context.Context, path string, payload any) (map[string]any, error)
	Fetcher
	Transfer
}

// Mirror copies a persisted artifact to object storage and returns its URL.
type Mirror interface {
	UploadToS3(ctx context.Context, key string, data io.Reader) (string, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPollInterval sets the wait between status fetches.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.pollInterval = d }
}

// WithMaxAttempts sets the polling budget.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) { s.maxAttempts = n }
}

// WithSleeper replaces the poll wait, mainly for tests.
func WithSleeper(sl Sleeper) ServiceOption {
	return func(s *Service) { s.sleeper = sl }
}

// WithMirror enables copying persisted videos to object storage.
func WithMirror(m Mirror) ServiceOption {
	return func(s *Service) { s.mirror = m }
}

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Service submits prompts to the video model and follows each job through
// to a persisted artifact.
type Service struct {
	api          API
	downloader   *Downloader
	model        string
	logger       *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
	sleeper      Sleeper
	mirror       Mirror
	now          func() time.Time
	poller       *Poller
}

// NewService creates a Service for the given video model.
func NewService(api API, downloader *Downloader, model string, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		api:          api,
		downloader:   downloader,
		model:        model,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultPollMaxAttempts,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.poller = NewPoller(api, s.sleeper, s.pollInterval, s.maxAttempts, logger)
	return s
}

// Generate submits pkg, waits for the job, and persists the artifact when
// the job completes. Polling exhaustion and a missing artifact are reported
// through Job.Outcome rather than as errors.
func (s *Service) Generate(ctx context.Context, pkg prompt.Package, opts Options) (*Job, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	pkg = pkg.Normalize()
	if pkg.SoraPrompt == "" {
		return nil, ErrEmptyPrompt
	}

	initial, err := s.submit(ctx, RenderPrompt(pkg, opts))
	if err != nil {
		return nil, err
	}
	id := openai.String(initial, "id")

	result, err := s.poller.Await(ctx, id, initial)
	if err != nil {
		return nil, err
	}

	status := Status(strings.ToLower(string(result.Status)))
	if status == "" {
		status = StatusProcessing
	}
	job := &Job{
		ID:        id,
		Status:    status,
		CreatedAt: creationTime(result.Payload, s.now()),
		Outcome:   OutcomeTerminal,
		Error:     errorMessage(result.Payload),
	}
	if result.Exhausted {
		job.Outcome = OutcomeExhausted
	}
	if !status.Is(StatusCompleted) {
		return job, nil
	}

	desc, found := ResolveOutput(result.Payload)
	if !found {
		desc, found = s.fetchOutput(ctx, id)
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
	}
	var descPtr *Descriptor
	if found {
		descPtr = &desc
	}

	artifact, ok := s.downloader.Persist(ctx, id, descPtr, opts)
	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	if ok {
		job.DownloadRef = artifact.Ref
		job.MirrorURL = s.mirrorArtifact(ctx, id, artifact)
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
	} else if descPtr != nil {
		job.DownloadRef = descPtr.URL()
	}

	if job.DownloadRef == "" {
		job.Outcome = OutcomeMissingArtifact
		payload, _ := json.Marshal(result.Payload)
		s.logger.Warn("video completed without an accessible artifact",
			slog.String("video_id", id),
			slog.String("payload", string(payload)),
		)
	}
	return job, nil
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

func (s *Service) submit(ctx context.Context, rendered string) (map[string]any, error) {
	s.logger.Info("submitting video generation", slog.String("model", s.model))

	resp, err := s.api.PostJSON(ctx, "videos", map[string]any{
		"model":  s.model,
		"prompt": rendered,
	})
	if err != nil {
		return nil, fmt.Errorf("video: submit: %w", err)
	}
	id := openai.String(resp, "id")
	if id == "" {
		return nil, ErrMissingJobID
	}

	s.logger.Info("video accepted",
		slog.String("video_id", id),
		slog.String("status", openai.String(resp, "status")),
	)
	return resp, nil
}

// fetchOutput re-reads a completed job that arrived without output, first
// plainly and then with include=output.
func (s *Service) fetchOutput(ctx context.Context, id string) (Descriptor, bool) {
	queries := []url.Values{nil, {"include": {"output"}}}
	for _, q := range queries {
		resp, err := s.api.GetJSON(ctx, "videos/"+id, q)
		if err != nil {
			s.logger.Warn("video output lookup failed",
				slog.String("video_id", id),
				slog.String("error", err.Error()),
			)
			return Descriptor{}, false
		}
		if desc, ok := ResolveOutput(resp); ok {
			s.logger.Info("video output retrieved",
				slog.String("video_id", id),
				slog.Bool("include_output", q != nil),
			)
			return desc, true
		}
	}
	return Descriptor{}, false
}

func (s *Service) mirrorArtifact(ctx context.Context, id string, artifact Artifact) string {
	if s.mirror == nil {
		return ""
	}
	f, err := os.Open(artifact.Path)
	if err != nil {
		s.logger.Warn("video mirror skipped", slog.String("video_id", id), slog.String("error", err.Error()))
		return ""
	}
	defer func() { _ = f.Close() }()

	u, err := s.mirror.UploadToS3(ctx, "videos/"+filepath.Base(artifact.Path), f)
	if err != nil {
		s.logger.Warn("video mirror failed", slog.String("video_id", id), slog.String("error", err.Error()))
		return ""
	}
	s.logger.Info("video mirrored", slog.String("video_id", id), slog.String("url", u))
	return u
}

// epochMillisThreshold: epoch values with more than 11 digits are milliseconds.
const epochMillisThreshold = 99_999_999_999

// creationTime reads created_at, queued_at or started_at, whichever is first
// present and parseable, falling back to now.
func creationTime(payload map[string]any, now time.Time) time.Time {
	for _, key := range []string{"created_at", "queued_at", "started_at"} {
		switch v := payload[key].(type) {
		case float64:
			return epochTime(int64(v))
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return epochTime(n)
			}
		case string:
			v = strings.TrimSpace(v)
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return epochTime(n)
			}
		}
	}
	return now
}

func epochTime(n int64) time.Time {
	if n > epochMillisThreshold || n < -epochMillisThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func errorMessage(payload map[string]any) string {
	if obj, ok := openai.Object(payload, "error"); ok {
		if msg := openai.String(obj, "message"); msg != "" {
			return msg
		}
		return openai.String(obj, "code")
	}
	return openai.String(payload, "error")
}
