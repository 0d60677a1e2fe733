// Package taskpool implements the task pool (C5): a bounded, priority-
// ordered, per-item de-duplicated executor. Submission expands a task
// into its transitive dependency closure; a single scheduler loop
// dispatches whatever is both highest-priority and dependency-ready, up
// to a configured concurrency ceiling, and broadcasts lifecycle
// notifications for every task it runs.
package taskpool

import (
	"context"
	"sync"
	"time"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

// runningTask tracks one task currently executing, so cancellation can
// signal it without knowing anything about its Run function's internals.
type runningTask struct {
	key    taskKey
	cancel context.CancelFunc
	done   chan struct{}
}

// Pool is the task pool. One Pool serves one content library; its
// RunContext is shared read-only state, never mutated after construction.
type Pool struct {
	registry    *tasks.Registry
	records     *taskrecord.Store
	rc          *tasks.RunContext
	maxInFlight int

	mu        sync.Mutex
	queue     *priorityQueue
	inFlight  map[taskKey]*runningTask
	insertSeq uint64

	wake   chan struct{}
	notify *notifier

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPool starts the scheduler loop and returns immediately.
func NewPool(registry *tasks.Registry, records *taskrecord.Store, rc *tasks.RunContext, maxInFlight, notificationBufferSize int) *Pool {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	p := &Pool{
		registry:    registry,
		records:     records,
		rc:          rc,
		maxInFlight: maxInFlight,
		queue:       newPriorityQueue(),
		inFlight:    map[taskKey]*runningTask{},
		wake:        make(chan struct{}, 1),
		notify:      newNotifier(notificationBufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	go p.schedulerLoop()
	return p
}

// Subscribe returns a bounded, drop-oldest stream of every TaskNotification
// the pool publishes, and an unsubscribe function.
func (p *Pool) Subscribe() (<-chan TaskNotification, func()) { return p.notify.Subscribe() }

// Close stops the scheduler loop and waits for it to exit. In-flight tasks
// are cancelled; it does not wait for their goroutines to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
	p.mu.Lock()
	for _, rt := range p.inFlight {
		rt.cancel()
	}
	p.mu.Unlock()
}

func (p *Pool) wakeScheduler() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Submit expands taskType into its transitive dependency closure and
// enqueues every member not already up to date, all sharing one submit
// timestamp and the given priority, ordered by increasing insert
// sequence (deps-first, per Closure's topological order).
func (p *Pool) Submit(ctx context.Context, file types.FileInfo, taskType types.ContentTaskType, priority types.PriorityLevel) error {
	closure := p.registry.Closure(taskType)
	submitTs := time.Now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range closure {
		d, ok := p.registry.Get(t)
		if !ok {
			continue
		}
		params := d.Parameters(p.rc)
		upToDate, err := p.records.IsUpToDate(ctx, file.FileID, t, taskrecord.HashParameters(params))
		if err != nil {
			return err
		}
		if upToDate {
			continue // P3: skip, but it still satisfies downstream deps via the record store
		}

		key := taskKey{FileID: file.FileID, Task: t}
		if _, running := p.inFlight[key]; running {
			continue // Conflict: the new submission folds into the in-flight run
		}

		newPriority := types.PriorityKey{Level: priority, SubmitTimestampMs: submitTs, InsertSeq: p.insertSeq}
		p.insertSeq++

		if existing := p.queue.Find(key); existing != nil {
			if newPriority.Less(existing.priority) {
				p.queue.Remove(existing)
				existing.priority = newPriority
				existing.parameters = params
				p.queue.Enqueue(existing)
			}
			continue
		}

		entry := &pendingEntry{key: key, file: file, priority: newPriority, parameters: params}
		p.queue.Enqueue(entry)
		p.notify.Publish(TaskNotification{FileID: string(file.FileID), TaskType: t.String(), Status: NotifyInit})
	}

	p.wakeScheduler()
	return nil
}

func (p *Pool) schedulerLoop() {
	defer close(p.doneCh)
	ctx := context.Background()
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.wake:
		}
		p.dispatchReady(ctx)
	}
}

// dispatchReady dispatches every ready, highest-priority-first entry it
// can until either the queue has no ready entry left or max_in_flight is
// reached. A head-of-line entry whose dependencies are not yet satisfied
// is skipped without being removed, so lower-priority but ready work can
// still proceed (P2 holds among tasks with equal readiness).
func (p *Pool) dispatchReady(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.inFlight) >= p.maxInFlight {
			p.mu.Unlock()
			return
		}

		var chosen *pendingEntry
		for _, e := range p.queue.Snapshot() {
			ready, err := p.isReady(ctx, e)
			if err != nil || !ready {
				continue
			}
			chosen = e
			break
		}
		if chosen == nil {
			p.mu.Unlock()
			return
		}

		p.queue.Remove(chosen)
		runCtx, cancel := context.WithCancel(ctx)
		rt := &runningTask{key: chosen.key, cancel: cancel, done: make(chan struct{})}
		p.inFlight[chosen.key] = rt
		p.mu.Unlock()

		go p.runTask(runCtx, rt, chosen)
	}
}

// isReady reports whether every direct dependency of e's task already has
// a Finished run whose parameters match (P1). Transitive dependencies are
// satisfied transitively: a dependency is only ever itself dispatched
// once its own dependencies are ready.
func (p *Pool) isReady(ctx context.Context, e *pendingEntry) (bool, error) {
	d, ok := p.registry.Get(e.key.Task)
	if !ok {
		return false, cberrors.NewNotFound("taskpool.isReady", e.key.Task.String())
	}
	for _, dep := range d.Dependencies {
		dd, ok := p.registry.Get(dep)
		if !ok {
			continue
		}
		params := dd.Parameters(p.rc)
		upToDate, err := p.records.IsUpToDate(ctx, e.key.FileID, dep, taskrecord.HashParameters(params))
		if err != nil {
			return false, err
		}
		if !upToDate {
			return false, nil
		}
	}
	return true, nil
}

func (p *Pool) runTask(ctx context.Context, rt *runningTask, entry *pendingEntry) {
	defer close(rt.done)
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, entry.key)
		p.mu.Unlock()
		p.wakeScheduler()
	}()

	fileID, taskType := entry.key.FileID, entry.key.Task
	d, ok := p.registry.Get(taskType)
	if !ok {
		return
	}

	p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyStarted})

	run, err := p.records.AddTaskRun(ctx, fileID, taskType, entry.parameters)
	if err != nil {
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: err.Error()})
		return
	}
	run.Status = types.StatusStarted
	if err := p.records.UpdateTaskRun(ctx, fileID, run); err != nil {
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: err.Error()})
		return
	}

	runErr := d.Run(ctx, p.rc, entry.file, run)
	switch {
	case runErr == nil:
		now := time.Now()
		run.Status = types.StatusFinished
		run.FinishedAt = &now
		if err := p.records.UpdateTaskRun(ctx, fileID, run); err != nil {
			p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: err.Error()})
			return
		}
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyFinished})

	case cberrors.IsCancelled(runErr):
		// No Finished run is recorded; the run stays Init/Started so a
		// resubmission retries it from scratch.
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: "cancelled"})

	default:
		run.Status = types.StatusError
		run.Message = runErr.Error()
		_ = p.records.UpdateTaskRun(ctx, fileID, run)
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: runErr.Error()})
		if cberrors.IsPermanent(runErr) {
			p.cancelDependents(entry.key)
		}
	}
}

// cancelDependents cancels every pending/running task of the same file
// whose dependency closure includes key.Task, after key.Task fails
// permanently.
func (p *Pool) cancelDependents(key taskKey) {
	for _, t := range p.registry.TasksForKind(key.Task.Kind) {
		if t == key.Task {
			continue
		}
		for _, dep := range p.registry.Closure(t) {
			if dep == key.Task {
				p.CancelByIdAndType(key.FileID, t)
				break
			}
		}
	}
}

// CancelByIdAndType removes matching pending tasks and signals any
// matching running task to stop.
func (p *Pool) CancelByIdAndType(fileID types.FileIdentifier, taskType types.ContentTaskType) {
	key := taskKey{FileID: fileID, Task: taskType}
	p.mu.Lock()
	removed := p.queue.RemoveMatching(func(e *pendingEntry) bool { return e.key == key })
	running := p.inFlight[key]
	p.mu.Unlock()

	for range removed {
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: taskType.String(), Status: NotifyError, Message: "cancelled"})
	}
	if running != nil {
		running.cancel()
	}
}

// CancelById cancels every pending/running task for fileID.
func (p *Pool) CancelById(fileID types.FileIdentifier) {
	p.mu.Lock()
	removed := p.queue.RemoveMatching(func(e *pendingEntry) bool { return e.key.FileID == fileID })
	var running []*runningTask
	for k, rt := range p.inFlight {
		if k.FileID == fileID {
			running = append(running, rt)
		}
	}
	p.mu.Unlock()

	for _, e := range removed {
		p.notify.Publish(TaskNotification{FileID: string(fileID), TaskType: e.key.Task.String(), Status: NotifyError, Message: "cancelled"})
	}
	for _, rt := range running {
		rt.cancel()
	}
}

// CancelAll drains every pending task and signals every running task.
func (p *Pool) CancelAll() {
	p.mu.Lock()
	removed := p.queue.RemoveMatching(func(*pendingEntry) bool { return true })
	running := make([]*runningTask, 0, len(p.inFlight))
	for _, rt := range p.inFlight {
		running = append(running, rt)
	}
	p.mu.Unlock()

	for _, e := range removed {
		p.notify.Publish(TaskNotification{FileID: string(e.key.FileID), TaskType: e.key.Task.String(), Status: NotifyError, Message: "cancelled"})
	}
	for _, rt := range running {
		rt.cancel()
	}
}
