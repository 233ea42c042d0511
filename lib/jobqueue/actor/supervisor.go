package actor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/handler"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
	"github.com/flowkit/jobqueue/lib/jobqueue/logger"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
	jqtrace "github.com/flowkit/jobqueue/lib/jobqueue/trace"
)

// TickInterval is the supervisor's housekeeping period.
const TickInterval = 30 * time.Second

// Supervisor is the top-level registry: it creates and destroys queue
// actors, routes cross-queue requests, and owns the handler registry and
// event bus.
type Supervisor struct {
	mu      sync.RWMutex
	queues  map[job.QueueID]*queueActor
	names   map[string]job.QueueID
	workers map[job.QueueID][]*workerActor

	repo      repository.Repository
	registry  *handler.Registry
	bus       *events.Bus
	log       logger.StandardLogger
	now       func() time.Time
	heartbeat time.Duration

	stopCh chan struct{}
	stopWg sync.WaitGroup
}

// New constructs a Supervisor. registry must be fully populated with
// handlers before Start is called.
func New(repo repository.Repository, registry *handler.Registry, bus *events.Bus, log logger.StandardLogger) *Supervisor {
	if log == nil {
		log = &logger.DiscardLogger{}
	}
	if bus == nil {
		bus = events.NewBus(events.DefaultCapacity)
	}
	return &Supervisor{
		queues:    make(map[job.QueueID]*queueActor),
		names:     make(map[string]job.QueueID),
		workers:   make(map[job.QueueID][]*workerActor),
		repo:      repo,
		registry:  registry,
		bus:       bus,
		log:       log,
		now:       time.Now,
		heartbeat: DefaultHeartbeat,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the periodic Tick housekeeping loop. Call once.
func (s *Supervisor) Start(ctx context.Context) {
	s.stopWg.Add(1)
	go func() {
		defer s.stopWg.Done()
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Tick(context.Background())
			}
		}
	}()
}

// CreateQueue allocates a new queue, persists it, and spawns its queue actor
// and worker pool.
func (s *Supervisor) CreateQueue(ctx context.Context, name, description string, cfg job.QueueConfig) (*job.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.names[name]; exists {
		return nil, jobqueueerr.New(jobqueueerr.Conflict, "queue name already exists")
	}
	now := s.now()
	q := job.Queue{
		ID:          job.NewQueueID(),
		Name:        name,
		Description: description,
		State:       job.QueueRunning,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.registerQueueLocked(ctx, q, true)
}

// RegisterQueue attaches a queue actor to an already-persisted Queue record,
// used for recovery at startup.
func (s *Supervisor) RegisterQueue(ctx context.Context, q job.Queue) (*job.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerQueueLocked(ctx, q, false)
}

func (s *Supervisor) registerQueueLocked(ctx context.Context, q job.Queue, persist bool) (*job.Queue, error) {
	if persist {
		if err := s.repo.CreateQueue(ctx, &q); err != nil {
			return nil, err
		}
	}

	qa := newQueueActor(q, s.repo, s.bus, s.log)
	go qa.run()

	workers := make([]*workerActor, 0, q.Config.Concurrency)
	for i := uint(0); i < q.Config.Concurrency; i++ {
		w := newWorkerActor(workerID(q.ID, i), q.ID, qa, s.registry, s.bus, s.log, s.heartbeat)
		workers = append(workers, w)
		go s.superviseWorker(q.ID, qa, i, w)
	}

	s.queues[q.ID] = qa
	s.names[q.Name] = q.ID
	s.workers[q.ID] = workers

	s.bus.Publish(events.Event{Kind: events.QueueCreated, Queue: &q, QueueID: q.ID, Timestamp: s.now()})
	return &q, nil
}

// superviseWorker runs w to completion and, if it reports a crash rather than
// a deliberate Shutdown, spawns a replacement in its slot and keeps
// supervising that one in turn. Workers are replaced on death: a panic in one
// worker must not shrink its queue's concurrency permanently.
func (s *Supervisor) superviseWorker(queueID job.QueueID, qa *queueActor, idx uint, w *workerActor) {
	for {
		if crashed := w.run(); !crashed {
			return
		}

		s.mu.Lock()
		if _, ok := s.queues[queueID]; !ok {
			// Queue was deleted concurrently with the crash; nothing to respawn into.
			s.mu.Unlock()
			return
		}
		w = newWorkerActor(workerID(queueID, idx), queueID, qa, s.registry, s.bus, s.log, s.heartbeat)
		if workers := s.workers[queueID]; int(idx) < len(workers) {
			workers[idx] = w
		}
		s.mu.Unlock()

		s.log.Warnw("worker respawned after crash", "queue_id", queueID, "worker_id", w.id)
		s.bus.Publish(events.Event{Kind: events.WorkerRespawned, QueueID: queueID, WorkerID: w.id, Timestamp: s.now()})
	}
}

func workerID(queueID job.QueueID, idx uint) string {
	return string(queueID) + "-worker-" + itoa(idx)
}

func itoa(u uint) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

func (s *Supervisor) lookup(id job.QueueID) (*queueActor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qa, ok := s.queues[id]
	return qa, ok
}

func (s *Supervisor) lookupByName(name string) (*queueActor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	if !ok {
		return nil, false
	}
	qa, ok := s.queues[id]
	return qa, ok
}

func (s *Supervisor) GetQueue(ctx context.Context, id job.QueueID) (*job.Queue, error) {
	qa, ok := s.lookup(id)
	if !ok {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return qa.GetInfo(ctx)
}

func (s *Supervisor) GetQueueByName(ctx context.Context, name string) (*job.Queue, error) {
	qa, ok := s.lookupByName(name)
	if !ok {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return qa.GetInfo(ctx)
}

// ListQueues fans GetInfo out to every queue actor; order is unspecified.
func (s *Supervisor) ListQueues(ctx context.Context) ([]*job.Queue, error) {
	s.mu.RLock()
	actors := make([]*queueActor, 0, len(s.queues))
	for _, qa := range s.queues {
		actors = append(actors, qa)
	}
	s.mu.RUnlock()

	out := make([]*job.Queue, 0, len(actors))
	for _, qa := range actors {
		q, err := qa.GetInfo(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *Supervisor) PauseQueue(ctx context.Context, id job.QueueID) error {
	qa, ok := s.lookup(id)
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return qa.Pause(ctx)
}

func (s *Supervisor) ResumeQueue(ctx context.Context, id job.QueueID) error {
	qa, ok := s.lookup(id)
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return qa.Resume(ctx)
}

// DeleteQueue shuts the actor and its workers down, removes it from the
// registry, removes the persisted queue record, and emits QueueDeleted.
func (s *Supervisor) DeleteQueue(ctx context.Context, id job.QueueID) error {
	s.mu.Lock()
	qa, ok := s.queues[id]
	if !ok {
		s.mu.Unlock()
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	workers := s.workers[id]
	delete(s.queues, id)
	delete(s.workers, id)
	for name, qid := range s.names {
		if qid == id {
			delete(s.names, name)
			break
		}
	}
	s.mu.Unlock()

	for _, w := range workers {
		w.Shutdown()
	}
	_ = qa.Shutdown(ctx)

	if err := s.repo.DeleteQueue(ctx, id); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.QueueDeleted, QueueID: id, Timestamp: s.now()})
	return nil
}

// EnqueueJob constructs a Job in the Pending state and forwards it to the
// owning queue actor.
func (s *Supervisor) EnqueueJob(ctx context.Context, queueID job.QueueID, jobType string, payload json.RawMessage, priority job.Priority, maxRetries, timeoutSecs uint, tags []string) (*job.Job, error) {
	qa, ok := s.lookup(queueID)
	if !ok {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	ctx, span := jqtrace.StartSpan(ctx, "jobqueue.enqueue")
	defer span.End()
	j := job.New(queueID, jobType, payload, priority, maxRetries, timeoutSecs, tags, s.now())
	j.TraceLink = jqtrace.MarshalCurrentSpan(ctx)
	return qa.Enqueue(ctx, j)
}

// GetJob broadcasts to every queue actor and returns the first definitive
// answer.
func (s *Supervisor) GetJob(ctx context.Context, id job.ID) (*job.Job, error) {
	s.mu.RLock()
	actors := make([]*queueActor, 0, len(s.queues))
	for _, qa := range s.queues {
		actors = append(actors, qa)
	}
	s.mu.RUnlock()

	for _, qa := range actors {
		if j, ok, err := qa.GetJob(ctx, id); err == nil && ok {
			return j, nil
		}
	}
	return nil, jobqueueerr.New(jobqueueerr.NotFound, "job not found")
}

// CancelJob broadcasts to every queue actor until one reports ownership.
func (s *Supervisor) CancelJob(ctx context.Context, id job.ID, reason string) error {
	s.mu.RLock()
	actors := make([]*queueActor, 0, len(s.queues))
	for _, qa := range s.queues {
		actors = append(actors, qa)
	}
	s.mu.RUnlock()

	for _, qa := range actors {
		err := qa.CancelJob(ctx, id, reason)
		if err == nil {
			return nil
		}
		if !jobqueueerr.Is(err, jobqueueerr.NotFound) {
			return err
		}
	}
	return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
}

// Subscribe attaches a fan-out receiver to the event stream.
func (s *Supervisor) Subscribe() *events.Subscription {
	return s.bus.Subscribe()
}

// Tick runs the 30s housekeeping pass across every queue actor.
func (s *Supervisor) Tick(ctx context.Context) {
	s.mu.RLock()
	actors := make([]*queueActor, 0, len(s.queues))
	for _, qa := range s.queues {
		actors = append(actors, qa)
	}
	s.mu.RUnlock()

	now := s.now()
	for _, qa := range actors {
		if err := qa.Tick(ctx, now); err != nil {
			s.log.Warnw("queue tick failed", "err", err)
		}
	}
}

// Shutdown terminates the supervisor's own housekeeping loop, then sends
// Shutdown to every queue actor's workers and to the queue actor itself.
func (s *Supervisor) Shutdown(ctx context.Context) {
	close(s.stopCh)
	s.stopWg.Wait()

	s.mu.Lock()
	actors := make(map[job.QueueID]*queueActor, len(s.queues))
	for id, qa := range s.queues {
		actors[id] = qa
	}
	workers := s.workers
	s.queues = make(map[job.QueueID]*queueActor)
	s.names = make(map[string]job.QueueID)
	s.workers = make(map[job.QueueID][]*workerActor)
	s.mu.Unlock()

	for id, qa := range actors {
		for _, w := range workers[id] {
			w.Shutdown()
		}
		_ = qa.Shutdown(ctx)
	}
}
