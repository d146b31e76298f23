// Package server provides the HTTP server for the Dream Visualizer API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/dreamvisualizer-api/internal/prompt"
	"github.com/maauso/dreamvisualizer-api/internal/speech"
	"github.com/maauso/dreamvisualizer-api/internal/video"
)

// CreateVideoRequest is the HTTP request body for generating a video from
// an existing prompt package.
type CreateVideoRequest struct {
	// Prompt is the engineered prompt package.
	Prompt *prompt.Package `json:"prompt" validate:"required"`
	// Options are optional generation hints.
	Options VideoOptionsRequest `json:"options"`
}

// VideoOptionsRequest carries the caller's generation hints.
type VideoOptionsRequest struct {
	DurationSeconds int    `json:"duration_seconds" validate:"lte=60"`
	AspectRatio     string `json:"aspect_ratio" validate:"omitempty,max=16"`
	Format          string `json:"format" validate:"omitempty,alphanum,max=8"`
	Seed            *int   `json:"seed,omitempty"`
}

// VideoResponse describes a video job.
type VideoResponse struct {
	// JobID is the remote job identifier.
	JobID string `json:"job_id"`
	// Status is the last observed job status.
	Status string `json:"status"`
	// Outcome tells completed, exhausted, missing and skipped jobs apart.
	Outcome string `json:"outcome,omitempty"`
	// DownloadURL is a local /videos/ reference or a remote URL.
	DownloadURL string `json:"download_url,omitempty"`
	// MirrorURL is the S3 copy of the video, if any.
	MirrorURL string `json:"mirror_url,omitempty"`
	// Error carries the remote failure detail.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the remote job was created.
	CreatedAt time.Time `json:"created_at"`
}

// DreamResponse is the HTTP response for a completed dream run.
type DreamResponse struct {
	// RunID identifies the tracked run.
	RunID      string             `json:"run_id"`
	Transcript *speech.Transcript `json:"transcript"`
	Prompt     *prompt.Package    `json:"prompt"`
	Video      VideoResponse      `json:"video"`
	// ElapsedMS is the wall time of the pipeline in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// LatestVideoResponse points at the most recently written video file.
type LatestVideoResponse struct {
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
	Modified time.Time `json:"modified"`
}

// RunResponse is the HTTP response for getting run details.
type RunResponse struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`
	// Stage is the current pipeline stage.
	Stage string `json:"stage"`
	// FailedStage is set when the run failed.
	FailedStage string `json:"failed_stage,omitempty"`
	// Error contains any error message if the run failed.
	Error       string     `json:"error,omitempty"`
	Language    string     `json:"language,omitempty"`
	VideoID     string     `json:"video_id,omitempty"`
	VideoStatus string     `json:"video_status,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Stage names the failed pipeline stage, if any.
	Stage string `json:"stage,omitempty"`
	// Details carries the underlying error text.
	Details string `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func toVideoResponse(j *video.Job) VideoResponse {
	if j == nil {
		return VideoResponse{}
	}
	return VideoResponse{
		JobID:       j.ID,
		Status:      string(j.Status),
		Outcome:     string(j.Outcome),
		DownloadURL: j.DownloadRef,
		MirrorURL:   j.MirrorURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
	}
}

func (o VideoOptionsRequest) toOptions() video.Options {
	return video.Options{
		DurationSeconds: o.DurationSeconds,
		AspectRatio:     o.AspectRatio,
		Format:          o.Format,
		Seed:            o.Seed,
	}.WithDefaults()
}
