// Package video manages the lifecycle of a remote video generation job:
// submission, polling until a terminal state, locating the produced
// artifact and persisting it locally.
package video

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the remote job state. Unknown strings reported by the remote
// service are carried as-is and treated as non-terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	// StatusSkipped marks a placeholder job when generation is disabled.
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether the status ends polling. Comparison is
// case-insensitive.
func (s Status) IsTerminal() bool {
	switch Status(strings.ToLower(strings.TrimSpace(string(s)))) {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Is reports whether s equals other ignoring case.
func (s Status) Is(other Status) bool {
	return strings.EqualFold(strings.TrimSpace(string(s)), string(other))
}

// Outcome describes how a Generate call ended.
type Outcome string

const (
	// OutcomeTerminal means the remote job reached a terminal status.
	OutcomeTerminal Outcome = "terminal"
	// OutcomeExhausted means the polling budget ran out before a terminal status.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeMissingArtifact means the job completed but no artifact could be located.
	OutcomeMissingArtifact Outcome = "missing_artifact"
	// OutcomeSkipped means generation was disabled and no remote job exists.
	OutcomeSkipped Outcome = "skipped"
)

// Job is the caller-visible result of one video generation.
type Job struct {
	// ID is assigned by the remote service at submission.
	ID string `json:"id"`
	// Status is the last status observed.
	Status Status `json:"status"`
	// CreatedAt comes from the remote payload, or the observation time.
	CreatedAt time.Time `json:"created_at"`
	// DownloadRef is a local "/videos/<file>" reference when the artifact was
	// persisted, else the remote URL, else empty.
	DownloadRef string `json:"download_url,omitempty"`
	// Outcome tells terminal, exhausted, missing artifact and skipped apart.
	Outcome Outcome `json:"outcome"`
	// MirrorURL is set when the persisted artifact was copied to object storage.
	MirrorURL string `json:"mirror_url,omitempty"`
	// Error holds the remote failure detail.
	Error string `json:"error,omitempty"`
}

// Default generation options used by the serving layer and CLI.
const (
	DefaultDurationSeconds = 5
	DefaultAspectRatio     = "16:9"
	DefaultFormat          = "mp4"
)

// Options are caller hints for rendering and persisting a video.
type Options struct {
	// DurationSeconds is the target duration; 0 means unset.
	DurationSeconds int `json:"duration_seconds" validate:"gte=0,lte=60"`
	// AspectRatio such as "16:9"; empty means unset.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,max=16"`
	// Format is the preferred file extension, for example "mp4".
	Format string `json:"format" validate:"omitempty,alphanum,max=8"`
	// Seed is passed through for reference only.
	Seed *int `json:"seed,omitempty"`
}

var optionsValidator = validator.New()

// Validate checks the option bounds.
func (o Options) Validate() error {
	return optionsValidator.Struct(o)
}

// WithDefaults fills unset duration, aspect ratio and format.
func (o Options) WithDefaults() Options {
	if o.DurationSeconds <= 0 {
		o.DurationSeconds = DefaultDurationSeconds
	}
	if strings.TrimSpace(o.AspectRatio) == "" {
		o.AspectRatio = DefaultAspectRatio
	}
	if strings.TrimSpace(o.Format) == "" {
		o.Format = DefaultFormat
	}
	return o
}
