package service

import (
	"cmp"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stianhazel/play.tailwindcss.com/internal/assembler"
	"github.com/stianhazel/play.tailwindcss.com/internal/builder"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/progress"
)

var (
	defaultInterval = 30 * time.Second
	errorInterval   = 30 * time.Second
)

// BuildWorker builds one target (client or server) and publishes the
// artifacts. The host configuration is assembled once and reused for every
// rebuild; worker units are recreated by the orchestrator on each run.
type BuildWorker struct {
	target     assembler.Target
	assembler  *assembler.Assembler
	host       *builder.Config
	publisher  builder.Publisher
	done       chan struct{}
	singleShot bool
	log        *logging.Logger
	bar        *progress.Bar
	interval   time.Duration

	mu     sync.Mutex
	status Status
}

func NewBuildWorker(target assembler.Target, a *assembler.Assembler, logger *logging.Logger, bar *progress.Bar) *BuildWorker {
	host := a.HostConfig(target)
	a.Configure(host, target)
	return &BuildWorker{
		target:    target,
		assembler: a,
		host:      host,
		log:       logger.With("target", target.String()),
		bar:       bar,
		done:      make(chan struct{}),
		interval:  defaultInterval,
		status:    Status{Target: target.String()},
	}
}

func (w *BuildWorker) WithPublisher(p builder.Publisher) *BuildWorker {
	w.publisher = p
	return w
}

func (w *BuildWorker) WithSingleShot(singleShot bool) *BuildWorker {
	w.singleShot = singleShot
	return w
}

func (w *BuildWorker) WithInterval(d config.Duration) *BuildWorker {
	w.interval = cmp.Or(time.Duration(d), defaultInterval)
	return w
}

func (w *BuildWorker) Target() assembler.Target {
	return w.target
}

func (w *BuildWorker) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *BuildWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Execute runs one build of the worker's target and publishes the result.
func (w *BuildWorker) Execute(ctx context.Context) time.Time {
	startTime := time.Now()

	defer w.bar.Add(1)

	b := builder.New().
		WithConfig(w.host).
		WithPublisher(w.publisher).
		WithLogger(w.log).
		WithTarget(w.target.String())

	res, err := b.Build(ctx)
	if err != nil {
		var be *builder.BuildError
		var pe *builder.PublishError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			w.log.Debugf("build cancelled: %v", err)
			return w.report(BuildStateCancelled, startTime, nil, err)
		case errors.As(err, &be):
			w.log.Warnf("failed to build %v target: %v", w.target, err)
			return w.report(BuildStateBuildFailed, startTime, nil, err)
		case errors.As(err, &pe):
			w.log.Warnf("failed to publish %v target: %v", w.target, err)
			return w.report(BuildStatePublishFailed, startTime, nil, err)
		default:
			w.log.Warnf("failed to build %v target: %v", w.target, err)
			return w.report(BuildStateInternalError, startTime, nil, err)
		}
	}

	for _, msg := range res.Warnings {
		w.log.Warnf("%s", msg.Text)
	}
	unmatched := w.assembler.WarnUnmatched()

	w.log.Debugf("%v target built as %s.", w.target, res.ID)
	w.mu.Lock()
	w.status.Unmatched = unmatched
	w.mu.Unlock()
	return w.report(BuildStateSuccess, startTime, res, nil)
}

func (w *BuildWorker) report(state BuildState, startTime time.Time, res *builder.Result, err error) time.Time {
	interval := w.interval

	w.mu.Lock()
	w.status.State = state
	w.status.Started = startTime
	w.status.Duration = time.Since(startTime)
	w.status.Message = ""
	if res != nil {
		w.status.BuildID = res.ID
		w.status.Artifacts = len(res.Artifacts)
		w.status.Units = len(res.Units)
	}
	if err != nil {
		interval = errorInterval
		w.status.Message = err.Error()
	}
	w.mu.Unlock()

	if w.singleShot || state == BuildStateCancelled {
		return w.die()
	}

	return time.Now().Add(interval)
}

func (w *BuildWorker) die() time.Time {
	close(w.done)

	var zero time.Time
	return zero
}
