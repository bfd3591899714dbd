package chatworker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one unit of work bound to a chat. Jobs of the same chat run in dispatch order.
type Job struct {
	ChatID  string
	Kind    string
	Handler func(ctx context.Context) error
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	Uptime          string        `json:"uptime"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
	// ActiveChats maps chat id to the worker currently holding it.
	ActiveChats map[string]int `json:"active_chats"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool shards chat jobs over a fixed set of workers by chat id.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    atomic.Bool
	started    atomic.Bool

	totalDispatched atomic.Int64
	totalProcessed  atomic.Int64
	totalDropped    atomic.Int64
	totalErrors     atomic.Int64

	activeMu    sync.Mutex
	activeChats map[string]int
	startTime   time.Time

	// OnJobDone is called after every job, from the worker goroutine.
	OnJobDone func(kind string, err error, took time.Duration)
}

type worker struct {
	id            int
	jobs          chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	processing    atomic.Bool
	jobsProcessed atomic.Int64
	pool          *Pool
}

// NewPool builds a pool; Start must be called before dispatching.
func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		numWorkers:  numWorkers,
		queueSize:   queueSize,
		workers:     make([]*worker, numWorkers),
		activeChats: make(map[string]int),
	}
}

func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.startTime = time.Now()

	for i := 0; i < p.numWorkers; i++ {
		wctx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:     i,
			jobs:   make(chan Job, p.queueSize),
			ctx:    wctx,
			cancel: cancel,
			pool:   p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[CHAT_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues without blocking and reports whether the job was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	if p.stopped.Load() || !p.started.Load() {
		p.totalDropped.Add(1)
		return false
	}

	w := p.workers[p.shardFor(job.ChatID)]
	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case w.jobs <- job:
			return true
		default:
			return false
		}
	}()

	if !sent {
		p.totalDropped.Add(1)
		logrus.Warnf("[CHAT_WORKER_POOL] Worker %d queue full, dropping %s job for chat %s", w.id, job.Kind, job.ChatID)
		return false
	}
	p.totalDispatched.Add(1)
	return true
}

// Dispatch enqueues and waits for queue space until ctx is done.
func (p *Pool) Dispatch(ctx context.Context, job Job) (err error) {
	if p.stopped.Load() || !p.started.Load() {
		p.totalDropped.Add(1)
		return ErrPoolStopped
	}

	w := p.workers[p.shardFor(job.ChatID)]
	defer func() {
		if r := recover(); r != nil {
			p.totalDropped.Add(1)
			err = ErrPoolStopped
		}
	}()

	select {
	case w.jobs <- job:
		p.totalDispatched.Add(1)
		return nil
	case <-ctx.Done():
		p.totalDropped.Add(1)
		return ctx.Err()
	}
}

// Stop cancels the workers, runs what is still queued and waits for them to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		if !p.started.Load() {
			return
		}
		logrus.Info("[CHAT_WORKER_POOL] Stopping workers...")
		for _, w := range p.workers {
			w.cancel()
			close(w.jobs)
		}
		p.wg.Wait()
		logrus.Info("[CHAT_WORKER_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(chatID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	active := 0
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		busy := w.processing.Load()
		if busy {
			active++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobs),
			IsProcessing:  busy,
			JobsProcessed: w.jobsProcessed.Load(),
		})
	}

	p.activeMu.Lock()
	chats := make(map[string]int, len(p.activeChats))
	for k, v := range p.activeChats {
		chats[k] = v
	}
	p.activeMu.Unlock()

	uptime := ""
	if p.started.Load() {
		uptime = time.Since(p.startTime).Round(time.Second).String()
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   active,
		TotalDispatched: p.totalDispatched.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalDropped:    p.totalDropped.Load(),
		TotalErrors:     p.totalErrors.Load(),
		Uptime:          uptime,
		WorkerStats:     workerStats,
		ActiveChats:     chats,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[CHAT_WORKER_POOL] Worker %d started", w.id)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(job)
		case <-w.ctx.Done():
			w.drain()
			return
		}
	}
}

// drain keeps running queued jobs after cancellation until Stop closes the queue.
// Handlers see a done context.
func (w *worker) drain() {
	for job := range w.jobs {
		w.process(job)
	}
}

func (w *worker) process(job Job) {
	p := w.pool
	start := time.Now()

	p.activeMu.Lock()
	p.activeChats[job.ChatID] = w.id
	p.activeMu.Unlock()
	w.processing.Store(true)

	var err error
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[CHAT_WORKER_POOL] Worker %d panic on chat %s: %v", w.id, job.ChatID, r)
			err = errors.New("job panicked")
		}
		if err != nil {
			p.totalErrors.Add(1)
		}

		p.activeMu.Lock()
		delete(p.activeChats, job.ChatID)
		p.activeMu.Unlock()
		w.processing.Store(false)
		w.jobsProcessed.Add(1)
		p.totalProcessed.Add(1)

		if p.OnJobDone != nil {
			p.OnJobDone(job.Kind, err, time.Since(start))
		}
	}()

	err = job.Handler(w.ctx)
	if err != nil {
		logrus.WithError(err).Warnf("[CHAT_WORKER_POOL] Worker %d %s job failed for chat %s", w.id, job.Kind, job.ChatID)
	}
}
