package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maauso/dreamvisualizer-api/internal/openai"
)

// Polling defaults: 48 attempts at 10s is roughly eight minutes.
const (
	DefaultPollInterval    = 10 * time.Second
	DefaultPollMaxAttempts = 48
)

// ErrPollCancelled is returned when the context ends while waiting for a
// job. It is distinct from running out of attempts.
var ErrPollCancelled = errors.New("video: polling cancelled")

// Sleeper waits between polls. Sleep returns ctx.Err() if the context ends
// first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetcher reads a job's current state.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values) (map[string]any, error)
}

// PollResult is the last observation of a job.
type PollResult struct {
	// Payload is the last successfully fetched job object.
	Payload map[string]any
	// Status is the last known status.
	Status Status
	// Attempts counts the re-fetches made after the initial payload.
	Attempts int
	// Exhausted is true when the attempt budget ran out before a terminal status.
	Exhausted bool
}

// Poller waits for a remote job to reach a terminal status. It holds no
// per-job state, so one Poller may serve concurrent Await calls.
type Poller struct {
	fetcher     Fetcher
	sleeper     Sleeper
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewPoller creates a Poller. A nil sleeper waits on a real timer;
// non-positive interval or maxAttempts fall back to the defaults.
func NewPoller(fetcher Fetcher, sleeper Sleeper, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if sleeper == nil {
		sleeper = timerSleeper{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:     fetcher,
		sleeper:     sleeper,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Await re-fetches videos/{id} until the status is terminal or the attempt
// budget is spent. initial is the submission response and counts as the
// first observation. A failed fetch is logged and still consumes an attempt.
func (p *Poller) Await(ctx context.Context, id string, initial map[string]any) (PollResult, error) {
	current := initial
	status := Status(openai.String(initial, "status"))
	attempts := 0

	for !status.IsTerminal() && attempts < p.maxAttempts {
		if err := p.sleeper.Sleep(ctx, p.interval); err != nil {
			return PollResult{Payload: current, Status: status, Attempts: attempts},
				fmt.Errorf("%w: %w", ErrPollCancelled, err)
		}
		attempts++

		next, err := p.fetcher.GetJSON(ctx, "videos/"+id, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return PollResult{Payload: current, Status: status, Attempts: attempts},
					fmt.Errorf("%w: %w", ErrPollCancelled, ctxErr)
			}
			p.logger.Warn("video poll failed",
				slog.String("video_id", id),
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()),
			)
			continue
		}
		current = next

		nextStatus := Status(openai.String(next, "status"))
		if nextStatus == "" {
			continue
		}
		if !nextStatus.Is(status) {
			p.logger.Info("video status changed",
				slog.String("video_id", id),
				slog.String("from", string(status)),
				slog.String("to", string(nextStatus)),
			)
		}
		status = nextStatus
	}

	result := PollResult{Payload: current, Status: status, Attempts: attempts}
	if !status.IsTerminal() {
		result.Exhausted = true
		p.logger.Warn("video polling exhausted",
			slog.String("video_id", id),
			slog.Int("attempts", attempts),
			slog.String("status", string(status)),
		)
		return result, nil
	}

	p.logger.Info("video reached terminal status",
		slog.String("video_id", id),
		slog.String("status", string(status)),
	)
	return result, nil
}
