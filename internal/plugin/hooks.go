package plugin

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/log"
)

// hookQueueSize bounds the actions waiting for plugins.
const hookQueueSize = 32

// HookStats counts hook deliveries.
type HookStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

type hookJob struct {
	session string
	record  action.Record
}

// Hooks delivers emitted actions to subscribed plugins on a background
// worker so the caller never waits on a subprocess. When the queue is full
// new actions are dropped.
type Hooks struct {
	mgr  *Manager
	exec *Executor

	mu     sync.RWMutex
	closed bool
	jobs   chan hookJob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewHooks starts the hook worker.
func NewHooks(mgr *Manager, exec *Executor) *Hooks {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hooks{
		mgr:    mgr,
		exec:   exec,
		jobs:   make(chan hookJob, hookQueueSize),
		cancel: cancel,
	}
	h.wg.Add(1)
	go h.run(ctx)
	return h
}

// Dispatch queues rec for every plugin subscribed to its kind.
func (h *Hooks) Dispatch(session string, rec action.Record) {
	if len(h.mgr.Subscribers(string(rec.Type))) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.jobs <- hookJob{session: session, record: rec}:
	default:
		h.dropped.Add(1)
		log.Warn("plugin hook queue full, dropping action", "session", session, "action", rec.Type)
	}
}

// Stats returns the delivery counters.
func (h *Hooks) Stats() HookStats {
	return HookStats{
		Delivered: h.delivered.Load(),
		Failed:    h.failed.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close stops the worker after the queued actions are delivered.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.jobs)
	h.mu.Unlock()

	h.wg.Wait()
	h.cancel()
}

func (h *Hooks) run(ctx context.Context) {
	defer h.wg.Done()
	for job := range h.jobs {
		h.deliver(ctx, job)
	}
}

func (h *Hooks) deliver(ctx context.Context, job hookJob) {
	payload, err := json.Marshal(job.record)
	if err != nil {
		h.failed.Add(1)
		return
	}

	for _, p := range h.mgr.Subscribers(string(job.record.Type)) {
		req := &Request{
			ID:      uuid.NewString(),
			Session: job.session,
			Action:  string(job.record.Type),
			Payload: payload,
		}
		resp, err := h.exec.Execute(ctx, p, req)
		switch {
		case err != nil:
			h.failed.Add(1)
			log.Warn("plugin hook failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
		case !resp.Success:
			h.failed.Add(1)
			log.Warn("plugin hook reported failure", "plugin", p.Manifest.Name, "action", req.Action, "error", resp.Error)
		default:
			h.delivered.Add(1)
			log.Debug("plugin hook delivered", "plugin", p.Manifest.Name, "action", req.Action, "id", req.ID)
		}
	}
}
