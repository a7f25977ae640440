package main

import (
	"errors"
	"testing"
	"time"

	"stellar-hierarchy/hierarchy"
)

// fixtureWorld is a sun, an earth-like planet and its moon. Bodies are keyed
// by name through hierarchy.ParseBodyID so tests can address them as "sun".
func fixtureWorld(t *testing.T) *hierarchy.Registry {
	t.Helper()
	sun := &hierarchy.Body{
		ID: hierarchy.ParseBodyID("sun"), Name: "Sun", Kind: hierarchy.KindStar, IsMainStar: true,
		Physics: &hierarchy.Snapshot{MassKg: 2e30},
	}
	earth := &hierarchy.Body{
		ID: hierarchy.ParseBodyID("earth"), Name: "Earth", Kind: hierarchy.KindPlanet, ParentID: sun.ID,
		Physics: &hierarchy.Snapshot{MassKg: 6e24, Position: hierarchy.Vector3{X: 1.5e11}},
		Orbit:   &hierarchy.Orbit{SemiMajorAxisM: 1.5e11},
	}
	moon := &hierarchy.Body{
		ID: hierarchy.ParseBodyID("moon"), Name: "Moon", Kind: hierarchy.KindMoon, ParentID: earth.ID,
		Physics: &hierarchy.Snapshot{
			MassKg:   7e22,
			Position: hierarchy.Vector3{X: 1.5e11 + 3.8e8},
			Velocity: hierarchy.Vector3{Y: 1000},
		},
	}

	reg := hierarchy.NewRegistry()
	for _, b := range []*hierarchy.Body{sun, earth, moon} {
		if err := reg.Add(b); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func newTestSimulation(t *testing.T) (*Simulation, *Storage) {
	t.Helper()
	storage := newTestStorage(t)
	system := NewSystem("Fixture", hierarchy.ParseBodyID("fixture-system"))
	cfg := DefaultHostConfig()
	cfg.SweepEvery = 3
	cfg.Tick = 10 * time.Millisecond
	sim := NewSimulation(system, fixtureWorld(t), quietEngine(), storage, nil, NewTestMetricsCollector(), cfg)
	return sim, storage
}

func id(name string) hierarchy.BodyID {
	return hierarchy.ParseBodyID(name)
}

// =============================================================================
// DESTRUCTION TESTS
// =============================================================================

func TestSimulation_Destroy(t *testing.T) {
	sim, storage := newTestSimulation(t)

	changes, err := sim.Destroy([]hierarchy.BodyID{id("earth")}, hierarchy.StatusDestroyed)
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	c, ok := changes.For(id("moon"))
	if !ok || c.NewParent != id("sun") || c.Reason != hierarchy.ReasonFanOut {
		t.Fatalf("moon change = %+v (%v), want fan-out to the sun", c, ok)
	}

	moon, _ := sim.Body(id("moon"))
	if moon.ParentID != id("sun") {
		t.Errorf("moon parent = %s, want sun", moon.ParentID)
	}

	// Both the snapshot and the change log are persisted
	saved, _, err := storage.LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	earth, _ := saved.Get(id("earth"))
	if earth.Status != hierarchy.StatusDestroyed {
		t.Errorf("saved earth status = %s", earth.Status)
	}
	logged, err := storage.RecentChanges(10, "")
	if err != nil || len(logged) != len(changes) {
		t.Errorf("persisted %d changes (%v), want %d", len(logged), err, len(changes))
	}
}

func TestSimulation_DestroyRejects(t *testing.T) {
	tests := []struct {
		name    string
		ids     []hierarchy.BodyID
		status  hierarchy.Status
		wantErr error
	}{
		{"unknown body", []hierarchy.BodyID{id("earth"), id("pluto")}, hierarchy.StatusDestroyed, hierarchy.ErrUnknownBody},
		{"active status", []hierarchy.BodyID{id("earth")}, hierarchy.StatusActive, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := newTestSimulation(t)
			_, err := sim.Destroy(tt.ids, tt.status)
			if err == nil {
				t.Fatal("Destroy succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			// Nothing was marked
			earth, _ := sim.Body(id("earth"))
			if !earth.IsActive() {
				t.Error("earth was destroyed by a rejected batch")
			}
		})
	}
}

func TestSimulation_DestroyIsMonotonic(t *testing.T) {
	sim, _ := newTestSimulation(t)

	if _, err := sim.Destroy([]hierarchy.BodyID{id("moon")}, hierarchy.StatusAnnihilated); err != nil {
		t.Fatal(err)
	}
	_, err := sim.Destroy([]hierarchy.BodyID{id("moon")}, hierarchy.StatusDestroyed)
	if !errors.Is(err, hierarchy.ErrStatusRegression) {
		t.Errorf("err = %v, want ErrStatusRegression", err)
	}
}

func TestSimulation_DestroyLastStar(t *testing.T) {
	sim, _ := newTestSimulation(t)

	_, err := sim.Destroy([]hierarchy.BodyID{id("sun")}, hierarchy.StatusAnnihilated)
	if !errors.Is(err, hierarchy.ErrNoActiveStar) {
		t.Fatalf("err = %v, want ErrNoActiveStar", err)
	}
	sun, _ := sim.Body(id("sun"))
	if sun.IsActive() {
		t.Error("sun should stay annihilated")
	}
}

// =============================================================================
// TICK LOOP TESTS
// =============================================================================

func TestSimulation_StepSweepsOnSchedule(t *testing.T) {
	sim, storage := newTestSimulation(t)

	// Destroyed behind the engine's back; only a sweep repairs it
	sim.mu.Lock()
	sim.reg.SetStatus(id("earth"), hierarchy.StatusDestroyed)
	sim.mu.Unlock()

	sim.step()
	sim.step()
	if moon, _ := sim.Body(id("moon")); moon.ParentID != id("earth") {
		t.Fatal("moon moved before the sweep was due")
	}

	sim.step()
	if sim.Tick != 3 {
		t.Errorf("Tick = %d, want 3", sim.Tick)
	}
	if moon, _ := sim.Body(id("moon")); moon.ParentID != id("sun") {
		t.Errorf("moon parent = %s after sweep, want sun", moon.ParentID)
	}

	logged, err := storage.RecentChanges(10, id("moon").String())
	if err != nil || len(logged) != 1 || logged[0].Tick != 3 {
		t.Errorf("persisted moon changes = %+v (%v)", logged, err)
	}
}

func TestSimulation_RunStops(t *testing.T) {
	sim, _ := newTestSimulation(t)

	done := make(chan struct{})
	go func() {
		sim.Run()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	sim.Stop()
	sim.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// =============================================================================
// PHYSICS FEED TESTS
// =============================================================================

func TestSimulation_UpdatePhysicsPersistsOnNextRun(t *testing.T) {
	sim, storage := newTestSimulation(t)

	snap := hierarchy.Snapshot{MassKg: 6.1e24, Position: hierarchy.Vector3{X: 1.5e11}}
	if err := sim.UpdatePhysics(id("earth"), snap); err != nil {
		t.Fatalf("UpdatePhysics: %v", err)
	}
	if err := sim.UpdatePhysics(id("vulcan"), snap); !errors.Is(err, hierarchy.ErrUnknownBody) {
		t.Errorf("unknown body err = %v", err)
	}

	if changes := sim.Sweep(); len(changes) != 0 {
		t.Errorf("sweep moved %d bodies", len(changes))
	}

	saved, _, err := storage.LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	earth, _ := saved.Get(id("earth"))
	if earth.Mass() != 6.1e24 {
		t.Errorf("saved earth mass = %g, want 6.1e24", earth.Mass())
	}
}

// =============================================================================
// READ MODEL TESTS
// =============================================================================

func TestSimulation_Tree(t *testing.T) {
	sim, _ := newTestSimulation(t)

	roots := sim.Tree()
	if len(roots) != 1 || roots[0].ID != id("sun") || !roots[0].IsMainStar {
		t.Fatalf("roots = %+v, want the sun alone", roots)
	}
	earth := roots[0].Children
	if len(earth) != 1 || earth[0].ID != id("earth") {
		t.Fatalf("sun children = %+v", earth)
	}
	if len(earth[0].Children) != 1 || earth[0].Children[0].ID != id("moon") {
		t.Errorf("earth children = %+v", earth[0].Children)
	}
}

func TestSimulation_BodiesAreCopies(t *testing.T) {
	sim, _ := newTestSimulation(t)

	bodies := sim.Bodies()
	bodies[0].Physics.MassKg = 1
	bodies[0].ParentID = id("moon")

	sun, _ := sim.Body(id("sun"))
	if sun.Mass() != 2e30 || sun.HasParent() {
		t.Error("mutating a returned body changed the registry")
	}
}

func TestSimulation_Stats(t *testing.T) {
	sim, _ := newTestSimulation(t)

	stats := sim.Stats()
	if stats["bodies"] != 3 || stats["active"] != 3 || stats["drifting"] != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats["main_star"] != "Sun" {
		t.Errorf("main_star = %v", stats["main_star"])
	}
	if _, ok := stats["problems"]; ok {
		t.Errorf("unexpected problems: %v", stats["problems"])
	}
}
