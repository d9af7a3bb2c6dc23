package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/process"
	"github.com/zjrosen/claudecode/internal/pubsub"
)

// RunInfo describes a streaming run started through the server.
type RunInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model,omitempty"`
	Transport string    `json:"transport"`
	StartedAt time.Time `json:"started_at"`
	Outcome   string    `json:"outcome,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// Registry tracks in-flight runs and publishes their lifecycle.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*tracked
	broker *pubsub.Broker[RunInfo]
}

type tracked struct {
	info RunInfo
	run  *process.Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runs:   make(map[string]*tracked),
		broker: pubsub.NewBroker[RunInfo](),
	}
}

// Track registers run until it resolves.
func (g *Registry) Track(run *process.Run, info RunInfo) {
	info.ID = run.ID()
	info.PID = run.PID()
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}

	g.mu.Lock()
	g.runs[info.ID] = &tracked{info: info, run: run}
	g.mu.Unlock()
	g.broker.Publish(pubsub.CreatedEvent, info)

	go func() {
		out := run.Wait()
		g.mu.Lock()
		delete(g.runs, info.ID)
		g.mu.Unlock()

		info.Outcome = out.Kind.String()
		info.SessionID = out.SessionID
		g.broker.Publish(pubsub.FinishedEvent, info)
		log.Debug(log.CatServer, "run finished", "run_id", info.ID, "outcome", info.Outcome)
	}()
}

// List returns in-flight runs, oldest first.
func (g *Registry) List() []RunInfo {
	g.mu.Lock()
	out := make([]RunInfo, 0, len(g.runs))
	for _, t := range g.runs {
		out = append(out, t.info)
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Len returns the number of in-flight runs.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}

// Abort aborts the run with id. It reports false if no such run is in
// flight.
func (g *Registry) Abort(id string) bool {
	g.mu.Lock()
	t, ok := g.runs[id]
	g.mu.Unlock()
	if !ok {
		return false
	}
	t.run.Abort()
	return true
}

// AbortAll aborts every in-flight run.
func (g *Registry) AbortAll() {
	g.mu.Lock()
	runs := make([]*process.Run, 0, len(g.runs))
	for _, t := range g.runs {
		runs = append(runs, t.run)
	}
	g.mu.Unlock()

	for _, r := range runs {
		r.Abort()
	}
}

// Subscribe streams lifecycle events until ctx ends.
func (g *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[RunInfo] {
	return g.broker.Subscribe(ctx)
}

// Close stops publishing and closes every subscription.
func (g *Registry) Close() {
	g.broker.Close()
}
