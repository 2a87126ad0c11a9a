package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"video-share-service/internal/logger"
)

// ErrPoolClosed is delivered for tasks submitted after Stop.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of background work. ctx is cancelled when the pool stops.
type Task func(ctx context.Context) error

// Future yields the task error exactly once and is then closed.
type Future <-chan error

// Wait blocks until the task finished or ctx is done.
func (f Future) Wait(ctx context.Context) error {
	select {
	case err := <-f:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	name string
	task Task
	done chan error
}

// Pool runs tasks with bounded concurrency. Submit never blocks: jobs wait
// in an unbounded queue until a worker slot frees up.
type Pool struct {
	size   int
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	runner *pool.Pool

	mu      sync.Mutex
	queue   []job
	closed  bool
	wake    chan struct{}
	stopped chan struct{}

	inFlight atomic.Int64
}

// New starts a pool that runs at most size tasks at once.
func New(size int, log logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:    size,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		runner:  pool.New().WithMaxGoroutines(size),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Size is the concurrency limit.
func (p *Pool) Size() int { return p.size }

// InFlight is the number of running tasks.
func (p *Pool) InFlight() int { return int(p.inFlight.Load()) }

// Pending is the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Submit enqueues task and returns immediately.
func (p *Pool) Submit(name string, task Task) Future {
	done := make(chan error, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		done <- ErrPoolClosed
		close(done)
		return done
	}
	p.queue = append(p.queue, job{name: name, task: task, done: done})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return done
}

func (p *Pool) next() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue[0] = job{}
	p.queue = p.queue[1:]
	return j, true
}

func (p *Pool) dispatch() {
	defer close(p.stopped)
	for {
		j, ok := p.next()
		if !ok {
			select {
			case <-p.wake:
				continue
			case <-p.ctx.Done():
				p.runner.Wait()
				p.drain()
				return
			}
		}
		if p.ctx.Err() != nil {
			finish(j, ErrPoolClosed)
			continue
		}
		// Blocks while every slot is busy.
		p.runner.Go(func() { p.run(j) })
	}
}

func (p *Pool) run(j job) {
	if p.ctx.Err() != nil {
		finish(j, ErrPoolClosed)
		return
	}

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", j.name, r)
			}
		}()
		err = j.task(p.ctx)
	}()

	if err != nil && p.log != nil {
		p.log.WithField("task", j.name).WithError(err).Warn("background task failed")
	}
	finish(j, err)
}

func (p *Pool) drain() {
	p.mu.Lock()
	rest := p.queue
	p.queue = nil
	p.mu.Unlock()
	for _, j := range rest {
		finish(j, ErrPoolClosed)
	}
}

func finish(j job, err error) {
	j.done <- err
	close(j.done)
}

// Stop cancels running tasks, fails queued ones with ErrPoolClosed and waits
// for workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.stopped
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.stopped
}
