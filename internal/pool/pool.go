// Package pool schedules recurring build tasks by deadline.
package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Task runs once and returns when it wants to run next. A zero time removes
// the task from the pool.
type Task func(context.Context) time.Time

// Pool executes tasks in deadline order on a fixed number of goroutines. A
// task added while workers are idle wakes them immediately. Workers stop
// once the pool's context is cancelled; a task that is running finishes
// first.
type Pool struct {
	ctx     context.Context
	workers sync.WaitGroup

	mu    sync.Mutex
	queue []*task
	reg   map[string]*task
	wait  chan struct{}
}

type task struct {
	name     string
	fn       Task
	deadline time.Time
	rerun    bool
}

func New(ctx context.Context, workers int) *Pool {
	p := &Pool{ctx: ctx, reg: make(map[string]*task)}

	for range workers {
		p.workers.Add(1)
		go p.work()
	}

	return p
}

func (p *Pool) Add(name string, fn Task) {
	p.enqueue(&task{name: name, fn: fn, deadline: time.Now()})
}

// Wait blocks until every worker has stopped.
func (p *Pool) Wait() {
	p.workers.Wait()
}

// Len reports how many tasks are registered, queued or running.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reg)
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		t := p.dequeue()
		if t == nil {
			return
		}
		t.deadline = t.fn(p.ctx)
		p.enqueue(t)
	}
}

// Trigger runs the named task now, regardless of its deadline. A task that is
// currently running is re-run as soon as it finishes; later runs use the
// deadlines the task returns.
func (p *Pool) Trigger(n string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.IndexFunc(p.queue, func(t *task) bool { return t.name == n }); i != -1 {
		p.queue[i].deadline = time.Now()
		p.sortAndWake()
		return nil
	}
	// not queued, so it is running
	if t, ok := p.reg[n]; ok {
		t.rerun = true
		return nil
	}

	return fmt.Errorf("no task with name %s", n)
}

// sortAndWake must be called with p.mu held.
func (p *Pool) sortAndWake() {
	slices.SortFunc(p.queue, func(a, b *task) int {
		return a.deadline.Compare(b.deadline)
	})

	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

func (p *Pool) enqueue(t *task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.deadline.IsZero() {
		delete(p.reg, t.name)
		return
	}
	if t.rerun {
		t.rerun = false
		t.deadline = time.Now()
	}

	p.reg[t.name] = t
	p.queue = append(p.queue, t)
	p.sortAndWake()
}

// dequeue waits for the earliest task to become due. It returns nil when the
// pool's context is done.
func (p *Pool) dequeue() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.ctx.Err() != nil {
			return nil
		}

		next := time.Now().Add(24 * time.Hour)
		if len(p.queue) > 0 {
			next = p.queue[0].deadline
		}

		if !next.After(time.Now()) {
			break
		}

		if p.wait == nil {
			p.wait = make(chan struct{})
		}
		wait := p.wait

		p.mu.Unlock()
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-wait:
		case <-p.ctx.Done():
		}
		timer.Stop()
		p.mu.Lock()
	}

	var t *task
	t, p.queue = p.queue[0], p.queue[1:]
	return t
}
