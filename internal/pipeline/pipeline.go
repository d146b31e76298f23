// Package pipeline chains transcription, prompt engineering and video
// generation into a single dream visualization run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/dreamvisualizer-api/internal/prompt"
	"github.com/maauso/dreamvisualizer-api/internal/speech"
	"github.com/maauso/dreamvisualizer-api/internal/video"
)

// Stage is a step of a pipeline run.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageTranscribing      Stage = "transcribing"
	StagePromptEngineering Stage = "prompt_engineering"
	StageVideoGenerating   Stage = "video_generating"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// StageError reports which stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageObserver is told about every stage a run enters. err is set only
// when entering StageFailed.
type StageObserver func(stage Stage, err error)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req speech.Request) (*speech.Transcript, error)
}

// PromptEngineer turns a narrative into a prompt package.
type PromptEngineer interface {
	Engineer(ctx context.Context, narrative, imagePath string) (*prompt.Package, error)
}

// VideoGenerator renders a prompt package into a video job.
type VideoGenerator interface {
	Generate(ctx context.Context, pkg prompt.Package, opts video.Options) (*video.Job, error)
}

// Request is the input to one run.
type Request struct {
	// Audio is transcribed unless TranscriptOverride is set.
	Audio speech.Request
	// TranscriptOverride replaces transcription when non-blank.
	TranscriptOverride string
	// ImagePath is an optional reference image for prompt engineering.
	ImagePath string
	// Options are passed to video generation.
	Options video.Options
	// Observer, if set, receives stage transitions.
	Observer StageObserver
}

// Outcome is the result of a successful run.
type Outcome struct {
	Transcript *speech.Transcript `json:"transcript"`
	Prompt     *prompt.Package    `json:"prompt"`
	Video      *video.Job         `json:"video"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSkipVideoGeneration replaces video generation with a placeholder job.
func WithSkipVideoGeneration(skip bool) Option {
	return func(p *Pipeline) { p.skipVideo = skip }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs the three stages in order. It keeps no per-run state.
type Pipeline struct {
	transcriber Transcriber
	engineer    PromptEngineer
	generator   VideoGenerator
	logger      *slog.Logger
	skipVideo   bool
	now         func() time.Time
}

// New creates a Pipeline.
func New(t Transcriber, e PromptEngineer, g VideoGenerator, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		transcriber: t,
		engineer:    e,
		generator:   g,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SkipsVideoGeneration reports whether runs produce placeholder jobs.
func (p *Pipeline) SkipsVideoGeneration() bool { return p.skipVideo }

// Run executes one dream visualization. A failing stage aborts the run with
// a *StageError.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	notify := req.Observer
	if notify == nil {
		notify = func(Stage, error) {}
	}
	fail := func(stage Stage, err error) (*Outcome, error) {
		serr := &StageError{Stage: stage, Err: err}
		p.logger.Error("pipeline stage failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		notify(StageFailed, serr)
		return nil, serr
	}

	var transcript *speech.Transcript
	if override := strings.TrimSpace(req.TranscriptOverride); override != "" {
		p.logger.Info("using transcript override", slog.Int("chars", len(override)))
		transcript = speech.FromText(override, p.now())
	} else {
		notify(StageTranscribing, nil)
		t, err := p.transcriber.Transcribe(ctx, req.Audio)
		if err != nil {
			return fail(StageTranscribing, err)
		}
		transcript = t
	}

	notify(StagePromptEngineering, nil)
	pkg, err := p.engineer.Engineer(ctx, transcript.Text, req.ImagePath)
	if err != nil {
		return fail(StagePromptEngineering, err)
	}

	var job *video.Job
	if p.skipVideo {
		job = &video.Job{
			ID:        "skipped-" + uuid.NewString(),
			Status:    video.StatusSkipped,
			CreatedAt: p.now(),
			Outcome:   video.OutcomeSkipped,
		}
		p.logger.Info("video generation skipped", slog.String("video_id", job.ID))
	} else {
		notify(StageVideoGenerating, nil)
		job, err = p.generator.Generate(ctx, *pkg, req.Options)
		if err != nil {
			return fail(StageVideoGenerating, err)
		}
	}

	notify(StageDone, nil)
	return &Outcome{Transcript: transcript, Prompt: pkg, Video: job}, nil
}
