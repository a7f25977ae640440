package hierarchy

import (
	"bytes"
	"io"
	"log"
	"testing"
)

// newBody builds an Active body with a snapshot at rest.
func newBody(name string, kind Kind, mass float64, pos Vector3) *Body {
	return &Body{
		ID:      ParseBodyID(name),
		Name:    name,
		Kind:    kind,
		Physics: &Snapshot{MassKg: mass, Position: pos},
	}
}

func at(x float64) Vector3 {
	return Vector3{X: x}
}

func orbiting(b, parent *Body) *Body {
	b.ParentID = parent.ID
	return b
}

func withOrbit(b *Body, semiMajorAxis float64) *Body {
	b.Orbit = &Orbit{SemiMajorAxisM: semiMajorAxis}
	return b
}

func withVelocity(b *Body, v Vector3) *Body {
	b.Physics.Velocity = v
	return b
}

func registryOf(t *testing.T, bodies ...*Body) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, b := range bodies {
		if err := reg.Add(b); err != nil {
			t.Fatalf("Add(%s) failed: %v", b.Name, err)
		}
	}
	return reg
}

func quietEngine() *Engine {
	return NewEngine(DefaultConfig(), log.New(io.Discard, "", 0))
}

func recordingEngine() (*Engine, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewEngine(DefaultConfig(), log.New(&buf, "", 0)), &buf
}

func destroy(t *testing.T, reg *Registry, bodies ...*Body) []BodyID {
	t.Helper()
	ids := make([]BodyID, 0, len(bodies))
	for _, b := range bodies {
		if err := reg.SetStatus(b.ID, StatusDestroyed); err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", b.Name, err)
		}
		ids = append(ids, b.ID)
	}
	return ids
}

func assertValid(t *testing.T, reg *Registry) {
	t.Helper()
	if err := reg.Validate(); err != nil {
		t.Fatalf("registry invalid after run: %v", err)
	}
}

func assertParent(t *testing.T, b *Body, want *Body) {
	t.Helper()
	if want == nil {
		if b.HasParent() {
			t.Errorf("%s parent = %s, want none", b.Name, b.ParentID)
		}
		return
	}
	if b.ParentID != want.ID {
		t.Errorf("%s parent = %s, want %s", b.Name, b.ParentID, want.Name)
	}
}
