// Package run tracks dream visualization runs as they move through the
// pipeline stages, with an in-memory repository for lookups.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/dreamvisualizer-api/internal/pipeline"
	"github.com/maauso/dreamvisualizer-api/internal/run/id"
)

// ErrInvalidTransition is returned when an invalid stage transition is attempted.
var ErrInvalidTransition = errors.New("run: invalid stage transition")

// validTransitions defines which stage transitions are allowed.
var validTransitions = map[pipeline.Stage][]pipeline.Stage{
	pipeline.StageIdle:              {pipeline.StageTranscribing, pipeline.StagePromptEngineering, pipeline.StageFailed},
	pipeline.StageTranscribing:      {pipeline.StagePromptEngineering, pipeline.StageFailed},
	pipeline.StagePromptEngineering: {pipeline.StageVideoGenerating, pipeline.StageDone, pipeline.StageFailed},
	pipeline.StageVideoGenerating:   {pipeline.StageDone, pipeline.StageFailed},
	pipeline.StageDone:              {},
	pipeline.StageFailed:            {},
}

func canTransition(from, to pipeline.Stage) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Run is one pipeline invocation.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Stage is the current pipeline stage.
	Stage pipeline.Stage
	// FailedStage is the stage that was active when the run failed.
	FailedStage pipeline.Stage
	// Error contains the failure message.
	Error string
	// Language is the transcription language hint, if any.
	Language string
	// VideoID is the remote video job ID.
	VideoID string
	// VideoStatus is the final remote video status.
	VideoStatus string
	// DownloadRef is where the video can be fetched.
	DownloadRef string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run last changed.
	UpdatedAt time.Time
	// CompletedAt is when the run reached done or failed.
	CompletedAt time.Time
}

// New creates an idle Run with a generated ID.
func New() *Run {
	return NewWithID(id.Generate())
}

// NewWithID creates an idle Run with the given ID.
func NewWithID(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Stage:     pipeline.StageIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the run to stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(stage pipeline.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(stage)
}

func (r *Run) transitionLocked(stage pipeline.Stage) error {
	if !canTransition(r.Stage, stage) {
		return ErrInvalidTransition
	}
	r.Stage = stage
	r.UpdatedAt = time.Now()
	if stage == pipeline.StageDone || stage == pipeline.StageFailed {
		r.CompletedAt = r.UpdatedAt
	}
	return nil
}

// Fail records errMsg and moves the run to failed.
func (r *Run) Fail(errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	failedAt := r.Stage
	if err := r.transitionLocked(pipeline.StageFailed); err != nil {
		return err
	}
	r.FailedStage = failedAt
	r.Error = errMsg
	return nil
}

// SetVideo records the video job result.
func (r *Run) SetVideo(videoID, status, downloadRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.VideoID = videoID
	r.VideoStatus = status
	r.DownloadRef = downloadRef
	r.UpdatedAt = time.Now()
}

// GetStage returns the current stage (thread-safe).
func (r *Run) GetStage() pipeline.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Stage
}

// IsTerminal reports whether the run is done or failed.
func (r *Run) IsTerminal() bool {
	s := r.GetStage()
	return s == pipeline.StageDone || s == pipeline.StageFailed
}

// Clone creates a copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Run{
		ID:          r.ID,
		Stage:       r.Stage,
		FailedStage: r.FailedStage,
		Error:       r.Error,
		Language:    r.Language,
		VideoID:     r.VideoID,
		VideoStatus: r.VideoStatus,
		DownloadRef: r.DownloadRef,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}
