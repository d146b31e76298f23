package run

import (
	"context"
	"log/slog"

	"github.com/maauso/dreamvisualizer-api/internal/pipeline"
)

// Tracker records run progress in a Repository.
type Tracker struct {
	repo   Repository
	logger *slog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(repo Repository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, logger: logger}
}

// Start creates and stores a new idle run.
func (t *Tracker) Start(ctx context.Context, language string) (*Run, error) {
	r := New()
	r.Language = language

	t.logger.Info("run created", slog.String("run_id", r.ID))
	if err := t.repo.Save(ctx, r); err != nil {
		t.logger.Error("failed to save run",
			slog.String("run_id", r.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return r, nil
}

// Observer returns a pipeline.StageObserver that advances r and stores
// every change. Storage failures are logged and do not stop the pipeline.
func (t *Tracker) Observer(ctx context.Context, r *Run) pipeline.StageObserver {
	return func(stage pipeline.Stage, stageErr error) {
		var err error
		if stage == pipeline.StageFailed {
			msg := ""
			if stageErr != nil {
				msg = stageErr.Error()
			}
			err = r.Fail(msg)
		} else {
			err = r.TransitionTo(stage)
		}
		if err != nil {
			t.logger.Warn("run transition rejected",
				slog.String("run_id", r.ID),
				slog.String("from", string(r.GetStage())),
				slog.String("to", string(stage)),
			)
			return
		}
		t.save(ctx, r)
	}
}

// Finish records the video result of a completed run.
func (t *Tracker) Finish(ctx context.Context, r *Run, outcome *pipeline.Outcome) {
	if outcome != nil && outcome.Video != nil {
		r.SetVideo(outcome.Video.ID, string(outcome.Video.Status), outcome.Video.DownloadRef)
	}
	t.save(ctx, r)
}

// Get returns the stored run.
func (t *Tracker) Get(ctx context.Context, id string) (*Run, error) {
	return t.repo.FindByID(ctx, id)
}

// List returns stored runs, newest first.
func (t *Tracker) List(ctx context.Context) ([]*Run, error) {
	return t.repo.List(ctx)
}

func (t *Tracker) save(ctx context.Context, r *Run) {
	if err := t.repo.Save(ctx, r); err != nil {
		t.logger.Warn("failed to save run",
			slog.String("run_id", r.ID),
			slog.String("error", err.Error()),
		)
	}
}
