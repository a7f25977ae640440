package main

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"stellar-hierarchy/hierarchy"
)

// ChangeBatch is what one engine run publishes to subscribers
type ChangeBatch struct {
	Tick      uint64              `json:"tick"`
	Operation string              `json:"operation"`
	Changes   hierarchy.ChangeLog `json:"changes"`
	Error     string              `json:"error,omitempty"`
}

// Simulation owns the live registry. Every engine run, API mutation and
// physics update goes through mu, so the engine never sees a registry that
// changes under it.
type Simulation struct {
	mu       sync.Mutex
	system   *System
	reg      *hierarchy.Registry
	engine   *hierarchy.Engine
	storage  *Storage
	hub      *Hub
	metrics  *MetricsCollector
	dirty    bool // physics changed since the last save
	stopOnce sync.Once
	stop     chan struct{}

	Tick       uint64        // monotonic, restored from the snapshot
	SweepEvery uint64        // ticks between periodic sweeps
	Interval   time.Duration // tick interval
}

// NewSimulation wires a registry to its engine. storage, hub and metrics
// may be nil.
func NewSimulation(system *System, reg *hierarchy.Registry, engine *hierarchy.Engine,
	storage *Storage, hub *Hub, metrics *MetricsCollector, cfg HostConfig) *Simulation {
	return &Simulation{
		system:     system,
		reg:        reg,
		engine:     engine,
		storage:    storage,
		hub:        hub,
		metrics:    metrics,
		stop:       make(chan struct{}),
		SweepEvery: cfg.SweepEvery,
		Interval:   cfg.Tick,
	}
}

// Run drives the tick loop. Blocks until Stop is called.
func (s *Simulation) Run() {
	log.Printf("Simulation started at tick %s (sweep every %d ticks, mode %s)",
		humanize.Comma(int64(s.Tick)), s.SweepEvery, s.engine.Config.Mode)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.step()
		case <-s.stop:
			log.Printf("Simulation stopped at tick %s", humanize.Comma(int64(s.Tick)))
			return
		}
	}
}

// Stop halts the tick loop
func (s *Simulation) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Simulation) step() {
	s.mu.Lock()
	s.Tick++
	tick := s.Tick
	s.mu.Unlock()

	if s.SweepEvery > 0 && tick%s.SweepEvery == 0 {
		s.Sweep()
	}
}

// Sweep runs the periodic maintenance pass now
func (s *Simulation) Sweep() hierarchy.ChangeLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	changes := s.engine.PeriodicSweep(s.reg)
	s.commit("sweep", start, changes, nil)
	return changes
}

// Destroy marks a batch of bodies with status and lets the engine repair the
// hierarchy around them. Nothing is changed when an id is unknown or the
// status would move backwards.
func (s *Simulation) Destroy(ids []hierarchy.BodyID, status hierarchy.Status) (hierarchy.ChangeLog, error) {
	if status == hierarchy.StatusActive {
		return nil, fmt.Errorf("destroy: status must be destroyed or annihilated")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		b, ok := s.reg.Get(id)
		if !ok {
			return nil, fmt.Errorf("destroy %s: %w", id, hierarchy.ErrUnknownBody)
		}
		if status < b.Status {
			return nil, fmt.Errorf("destroy %s: %w", id, hierarchy.ErrStatusRegression)
		}
	}
	for _, id := range ids {
		b, _ := s.reg.Get(id)
		if b.IsActive() && s.metrics != nil {
			s.metrics.RecordDestruction(b.Kind)
		}
		if err := s.reg.SetStatus(id, status); err != nil {
			return nil, err
		}
	}
	s.dirty = true

	start := time.Now()
	changes, err := s.engine.HandleDestruction(s.reg, ids)
	s.commit("destruction", start, changes, err)
	return changes, err
}

// UpdatePhysics takes a fresh snapshot from an external integrator. It is
// persisted with the next engine run.
func (s *Simulation) UpdatePhysics(id hierarchy.BodyID, snap hierarchy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reg.UpdatePhysics(id, snap); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// commit records a finished run. Callers hold mu.
func (s *Simulation) commit(operation string, start time.Time, changes hierarchy.ChangeLog, runErr error) {
	if s.metrics != nil {
		s.metrics.RecordRun(operation, time.Since(start), changes, runErr)
		s.metrics.ObserveRegistry(s.reg)
	}

	if len(changes) == 0 && !s.dirty && runErr == nil {
		return
	}

	if s.storage != nil {
		if err := s.storage.SaveRegistry(s.reg, s.Tick); err != nil {
			log.Printf("Failed to save registry: %v", err)
		} else {
			s.dirty = false
		}
		if err := s.storage.AppendChanges(s.Tick, changes); err != nil {
			log.Printf("Failed to append change log: %v", err)
		}
	} else {
		s.dirty = false
	}

	batch := ChangeBatch{Tick: s.Tick, Operation: operation, Changes: changes}
	if runErr != nil {
		batch.Error = runErr.Error()
	}
	if s.hub != nil && (len(changes) > 0 || runErr != nil) {
		s.hub.Publish("changes", batch)
	}

	if len(changes) > 0 {
		log.Printf("Tick %s: %s moved %s bodies", humanize.Comma(int64(s.Tick)), operation,
			humanize.Comma(int64(len(changes))))
	}
}

// Checkpoint saves the registry regardless of pending changes
func (s *Simulation) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage == nil {
		return nil
	}
	if err := s.storage.SaveRegistry(s.reg, s.Tick); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Bodies returns a copy of every body in registry order
func (s *Simulation) Bodies() []*hierarchy.Body {
	s.mu.Lock()
	defer s.mu.Unlock()

	bodies := make([]*hierarchy.Body, 0, s.reg.Len())
	for _, b := range s.reg.Bodies() {
		bodies = append(bodies, b.Clone())
	}
	return bodies
}

// Body returns a copy of one body
func (s *Simulation) Body(id hierarchy.BodyID) (*hierarchy.Body, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.reg.Get(id)
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// TreeNode is one body in the derived hierarchy
type TreeNode struct {
	ID         hierarchy.BodyID `json:"id"`
	Name       string           `json:"name"`
	Kind       hierarchy.Kind   `json:"kind"`
	IsMainStar bool             `json:"is_main_star,omitempty"`
	Children   []*TreeNode      `json:"children,omitempty"`
}

// Tree returns the active hierarchy. Roots are the main star, any other
// parentless star and drifting bodies.
func (s *Simulation) Tree() []*TreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	var roots []*TreeNode
	for _, b := range s.reg.Active() {
		if parent, ok := s.reg.Parent(b); ok && parent.IsActive() {
			continue
		}
		roots = append(roots, s.subtree(b))
	}
	return roots
}

func (s *Simulation) subtree(b *hierarchy.Body) *TreeNode {
	node := &TreeNode{ID: b.ID, Name: b.Name, Kind: b.Kind, IsMainStar: b.IsMainStar}
	for _, child := range s.reg.Children(b.ID) {
		node.Children = append(node.Children, s.subtree(child))
	}
	return node
}

// Stats summarises the live registry
func (s *Simulation) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"system":   s.system.Name,
		"tick":     s.Tick,
		"mode":     s.engine.Config.Mode,
		"bodies":   s.reg.Len(),
		"active":   len(s.reg.Active()),
		"drifting": len(s.reg.Drifting()),
	}
	if main := s.reg.MainStar(); main != nil {
		stats["main_star"] = main.Name
	}
	if err := s.reg.Validate(); err != nil {
		var inv *hierarchy.InvariantError
		if errors.As(err, &inv) {
			stats["problems"] = inv.Problems
		}
	}
	return stats
}

// EngineConfig returns the engine tuning in use
func (s *Simulation) EngineConfig() hierarchy.Config {
	return s.engine.Config
}
