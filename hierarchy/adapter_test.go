package hierarchy

import (
	"encoding/json"
	"testing"
)

// =============================================================================
// RECORD SCHEMA TESTS
// =============================================================================

const recordsJSON = `[
  {"id": "sol", "kind": "STAR", "isMainStar": true, "massKg": 2e30, "position": [0, 0, 0]},
  {"id": "jupiter", "kind": "GAS_GIANT", "parentId": "sol", "massKg": 1.9e27,
   "position": [7.8e11, 0, 0], "velocity": [0, 13000, 0], "semiMajorAxis": 7.8e11},
  {"id": "io", "kind": "MOON", "parentId": "jupiter", "currentParentId": "sol", "massKg": 8.9e22,
   "position": [7.804e11, 0, 0]},
  {"id": "ghost", "kind": "MOON", "parentId": "jupiter", "massKg": 1e20}
]`

func decodeRecords(t *testing.T) []BodyRecord {
	t.Helper()
	var records []BodyRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	return records
}

func TestFromRecords(t *testing.T) {
	reg, err := FromRecords(decodeRecords(t))
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("Len = %d, want 4", reg.Len())
	}

	sol, _ := reg.Get(ParseBodyID("sol"))
	jupiter, _ := reg.Get(ParseBodyID("jupiter"))
	io, _ := reg.Get(ParseBodyID("io"))
	ghost, _ := reg.Get(ParseBodyID("ghost"))

	if sol.Kind != KindStar || !sol.IsMainStar {
		t.Errorf("sol = %s main=%v, want main star", sol.Kind, sol.IsMainStar)
	}
	if jupiter.Kind != KindGasGiant || jupiter.SemiMajorAxis() != 7.8e11 {
		t.Errorf("jupiter = %s a=%v", jupiter.Kind, jupiter.SemiMajorAxis())
	}
	if jupiter.Physics.Velocity.Y != 13000 {
		t.Errorf("jupiter velocity = %+v", jupiter.Physics.Velocity)
	}
	assertParent(t, jupiter, sol)

	// currentParentId is authoritative.
	assertParent(t, io, sol)

	if ghost.Physics != nil {
		t.Errorf("record without position should have no snapshot")
	}
}

func TestFromRecords_BadStatus(t *testing.T) {
	records := []BodyRecord{{ID: "x", Kind: "STAR", Status: "exploded"}}
	if _, err := FromRecords(records); err == nil {
		t.Errorf("FromRecords should reject unknown statuses")
	}
}

func TestApplyToRecords(t *testing.T) {
	records := decodeRecords(t)
	reg, err := FromRecords(records)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.SetParent(ParseBodyID("io"), ParseBodyID("jupiter")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.SetParent(ParseBodyID("ghost"), NoParent); err != nil {
		t.Fatal(err)
	}
	ApplyToRecords(records, reg)

	if records[2].CurrentParentID != "jupiter" || records[2].ParentID != "jupiter" {
		t.Errorf("io parent = %q/%q, want jupiter", records[2].ParentID, records[2].CurrentParentID)
	}
	if records[3].CurrentParentID != "" || records[3].ParentID != "" {
		t.Errorf("ghost parent = %q/%q, want none", records[3].ParentID, records[3].CurrentParentID)
	}

	// Reloading the written records gives the same hierarchy.
	again, err := FromRecords(records)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range reg.Bodies() {
		other, _ := again.Get(b.ID)
		if other.ParentID != b.ParentID {
			t.Errorf("%s parent changed across round trip", b.Name)
		}
	}
}

// =============================================================================
// SCENE SCHEMA TESTS
// =============================================================================

func sampleScene() (*SceneObject, *SceneObject, *SceneObject) {
	star := &SceneObject{ID: "sun", Type: "star", IsMainStar: true,
		Physics: &PhysicsState{Mass: 2e30}}
	planet := &SceneObject{ID: "earth", Type: "planet", Parent: star,
		Physics: &PhysicsState{Mass: 6e24, Position: Vector3{X: 1.5e11}},
		Orbit:   &OrbitalParameters{SemiMajorAxis: 1.5e11, Eccentricity: 0.017}}
	moon := &SceneObject{ID: "moon", Type: "moon", Parent: planet,
		Physics: &PhysicsState{Mass: 7e22, Position: Vector3{X: 1.5038e11}}}

	star.Children = []*SceneObject{planet}
	// Stale list: the moon's parent pointer says earth.
	star.Children = append(star.Children, moon)
	return star, planet, moon
}

func TestFromScene(t *testing.T) {
	star, planet, moon := sampleScene()

	reg, err := FromScene([]*SceneObject{star})
	if err != nil {
		t.Fatalf("FromScene failed: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (children discovered)", reg.Len())
	}

	b, _ := reg.Get(ParseBodyID(moon.ID))
	earth, _ := reg.Get(ParseBodyID(planet.ID))
	assertParent(t, b, earth)
	if earth.Orbit == nil || earth.Orbit.Eccentricity != 0.017 {
		t.Errorf("earth orbit = %+v", earth.Orbit)
	}
}

func TestApplyToScene(t *testing.T) {
	star, planet, moon := sampleScene()
	reg, err := FromScene([]*SceneObject{star, planet, moon})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.SetParent(ParseBodyID("moon"), ParseBodyID("sun")); err != nil {
		t.Fatal(err)
	}
	ApplyToScene([]*SceneObject{star}, reg)

	if moon.Parent != star {
		t.Errorf("moon.Parent = %v, want sun", moon.Parent)
	}
	if len(star.Children) != 2 {
		t.Errorf("sun children = %d, want 2", len(star.Children))
	}
	if len(planet.Children) != 0 {
		t.Errorf("earth children = %d, want 0", len(planet.Children))
	}
}
