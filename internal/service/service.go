// Package service runs playbuild's build workers: one per target, scheduled
// on a pool either once or on a rebuild interval.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stianhazel/play.tailwindcss.com/internal/assembler"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/pool"
	"github.com/stianhazel/play.tailwindcss.com/internal/progress"
	"github.com/stianhazel/play.tailwindcss.com/internal/publish"
)

type BuildState int

const (
	BuildStateUnknown BuildState = iota
	BuildStateSuccess
	BuildStateBuildFailed
	BuildStatePublishFailed
	BuildStateInternalError
	BuildStateCancelled
)

func (s BuildState) String() string {
	switch s {
	case BuildStateSuccess:
		return "SUCCESS"
	case BuildStateBuildFailed:
		return "BUILD_FAILED"
	case BuildStatePublishFailed:
		return "PUBLISH_FAILED"
	case BuildStateInternalError:
		return "INTERNAL_ERROR"
	case BuildStateCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// Status is the outcome of a worker's latest build.
type Status struct {
	Target    string
	State     BuildState
	Message   string
	BuildID   string
	Artifacts int
	Units     int
	Unmatched []string
	Started   time.Time
	Duration  time.Duration
}

type Service struct {
	config     *config.Root
	targets    []assembler.Target
	storage    publish.Storage
	singleShot bool
	progress   bool
	log        *logging.Logger

	mu      sync.Mutex
	pool    *pool.Pool
	workers []*BuildWorker
}

func New() *Service {
	return &Service{
		targets: assembler.Targets,
		log:     logging.Discard(),
	}
}

func (s *Service) WithConfig(cfg *config.Root) *Service {
	s.config = cfg
	return s
}

func (s *Service) WithTargets(targets ...assembler.Target) *Service {
	if len(targets) > 0 {
		s.targets = targets
	}
	return s
}

// WithStorage overrides the storage configured in output.storage.
func (s *Service) WithStorage(storage publish.Storage) *Service {
	s.storage = storage
	return s
}

func (s *Service) WithSingleShot(singleShot bool) *Service {
	s.singleShot = singleShot
	return s
}

func (s *Service) WithProgress(progress bool) *Service {
	s.progress = progress
	return s
}

func (s *Service) WithLogger(log *logging.Logger) *Service {
	s.log = log
	return s
}

// Run assembles the configuration and builds every target. In single-shot
// mode it returns once each target has been built once, with an error if any
// of them failed. Otherwise targets are rebuilt on the configured interval
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.config == nil {
		return errors.New("service: no configuration")
	}

	a, err := assembler.New(s.config, s.log)
	if err != nil {
		return err
	}

	storage := s.storage
	if storage == nil {
		storage, err = publish.New(ctx, s.config.Output.Storage)
		if err != nil {
			return fmt.Errorf("output storage: %w", err)
		}
	}
	if storage == nil {
		storage = publish.NewFileSystemStorage(a.OutputDir())
	}

	var bar *progress.Bar
	if s.progress && s.singleShot {
		bar = progress.New(len(s.targets), "building")
		defer bar.Finish()
	}

	workers := make([]*BuildWorker, 0, len(s.targets))
	for _, t := range s.targets {
		pub := publish.NewPublisher(storage, t.String()).WithLogger(s.log)
		w := NewBuildWorker(t, a, s.log, bar).
			WithPublisher(pub).
			WithSingleShot(s.singleShot).
			WithInterval(s.config.Interval)
		workers = append(workers, w)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New(ctx, len(workers))
	s.mu.Lock()
	s.pool, s.workers = p, workers
	s.mu.Unlock()

	for _, w := range workers {
		p.Add(w.Target().String(), w.Execute)
	}

	if s.singleShot {
		for _, w := range workers {
			select {
			case <-w.done:
			case <-ctx.Done():
			}
		}
	} else {
		<-ctx.Done()
	}
	cancel()
	p.Wait()

	if !s.singleShot {
		return nil
	}

	var errs []error
	for _, st := range s.Status() {
		if st.State != BuildStateSuccess {
			errs = append(errs, fmt.Errorf("%s: %s", st.Target, cmp.Or(st.Message, "not built")))
		}
	}
	return errors.Join(errs...)
}

// Rebuild schedules an immediate rebuild of target.
func (s *Service) Rebuild(target assembler.Target) error {
	s.mu.Lock()
	p := s.pool
	s.mu.Unlock()
	if p == nil {
		return errors.New("service: not running")
	}
	return p.Trigger(target.String())
}

// Status returns the latest status of each target's worker, in target order.
func (s *Service) Status() []Status {
	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()

	statuses := make([]Status, len(workers))
	for i, w := range workers {
		statuses[i] = w.Status()
	}
	return statuses
}
