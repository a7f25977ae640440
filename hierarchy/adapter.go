package hierarchy

import (
	"fmt"
)

// Two body representations feed the engine. Scene objects hold live pointers
// to their parent and children; records are flat and refer to parents by
// string id. Both are normalised into a Registry and written back after a run.

// PhysicsState is the integrator state attached to a scene object.
type PhysicsState struct {
	Mass     float64 `json:"mass"`
	Position Vector3 `json:"position"`
	Velocity Vector3 `json:"velocity"`
}

// OrbitalParameters describe a scene object's orbit around its parent.
type OrbitalParameters struct {
	SemiMajorAxis float64 `json:"semiMajorAxis"`
	Eccentricity  float64 `json:"eccentricity"`
	Inclination   float64 `json:"inclination"`
	Period        float64 `json:"period"`
}

// SceneObject is the pointer-based schema. Parent is authoritative; Children
// is ignored on input except to discover objects not listed directly.
type SceneObject struct {
	ID         string
	Name       string
	Type       string // "star", "gas_giant", ...
	Status     string
	IsMainStar bool
	Physics    *PhysicsState
	Orbit      *OrbitalParameters
	Parent     *SceneObject
	Children   []*SceneObject
}

// FromScene builds a registry from scene objects. Objects reachable only
// through Children lists are added after their parent, depth first.
func FromScene(objects []*SceneObject) (*Registry, error) {
	reg := NewRegistry()
	visited := make(map[*SceneObject]bool)

	var add func(obj *SceneObject) error
	add = func(obj *SceneObject) error {
		if obj == nil || visited[obj] {
			return nil
		}
		visited[obj] = true
		b, err := obj.body()
		if err != nil {
			return err
		}
		if err := reg.Add(b); err != nil {
			return err
		}
		for _, child := range obj.Children {
			if err := add(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, obj := range objects {
		if err := add(obj); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (o *SceneObject) body() (*Body, error) {
	status, err := ParseStatus(o.Status)
	if err != nil {
		return nil, fmt.Errorf("scene object %s: %w", o.ID, err)
	}
	b := &Body{
		ID:         ParseBodyID(o.ID),
		Name:       o.Name,
		Kind:       ParseKind(o.Type),
		Status:     status,
		IsMainStar: o.IsMainStar,
	}
	if o.Parent != nil {
		b.ParentID = ParseBodyID(o.Parent.ID)
	}
	if o.Physics != nil {
		b.Physics = &Snapshot{
			MassKg:   o.Physics.Mass,
			Position: o.Physics.Position,
			Velocity: o.Physics.Velocity,
		}
	}
	if o.Orbit != nil {
		b.Orbit = &Orbit{
			SemiMajorAxisM: o.Orbit.SemiMajorAxis,
			Eccentricity:   o.Orbit.Eccentricity,
			InclinationDeg: o.Orbit.Inclination,
			PeriodSeconds:  o.Orbit.Period,
		}
	}
	return b, nil
}

// ApplyToScene copies parent links and main-star flags from reg onto the scene
// and rebuilds every Children list from the parent pointers. Objects unknown
// to reg keep their parent.
func ApplyToScene(objects []*SceneObject, reg *Registry) {
	byID := make(map[BodyID]*SceneObject)
	var all []*SceneObject
	var collect func(obj *SceneObject)
	collect = func(obj *SceneObject) {
		if obj == nil {
			return
		}
		id := ParseBodyID(obj.ID)
		if _, seen := byID[id]; seen {
			return
		}
		byID[id] = obj
		all = append(all, obj)
		for _, child := range obj.Children {
			collect(child)
		}
	}
	for _, obj := range objects {
		collect(obj)
	}

	for _, obj := range all {
		b, ok := reg.Get(ParseBodyID(obj.ID))
		if !ok {
			continue
		}
		obj.IsMainStar = b.IsMainStar
		obj.Parent = byID[b.ParentID]
	}
	for _, obj := range all {
		obj.Children = nil
	}
	for _, obj := range all {
		if obj.Parent != nil {
			obj.Parent.Children = append(obj.Parent.Children, obj)
		}
	}
}

// BodyRecord is the flat schema. CurrentParentID wins over ParentID when set.
// A record without a position has no physics snapshot.
type BodyRecord struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	Kind            string      `json:"kind"` // "STAR", "GAS_GIANT", ...
	Status          string      `json:"status,omitempty"`
	IsMainStar      bool        `json:"isMainStar,omitempty"`
	ParentID        string      `json:"parentId,omitempty"`
	CurrentParentID string      `json:"currentParentId,omitempty"`
	MassKg          float64     `json:"massKg"`
	Position        *[3]float64 `json:"position,omitempty"`
	Velocity        *[3]float64 `json:"velocity,omitempty"`
	SemiMajorAxisM  float64     `json:"semiMajorAxis,omitempty"`
	Eccentricity    float64     `json:"eccentricity,omitempty"`
}

func (rec BodyRecord) parent() string {
	if rec.CurrentParentID != "" {
		return rec.CurrentParentID
	}
	return rec.ParentID
}

// FromRecords builds a registry from flat records, in slice order.
func FromRecords(records []BodyRecord) (*Registry, error) {
	reg := NewRegistry()
	for _, rec := range records {
		status, err := ParseStatus(rec.Status)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		b := &Body{
			ID:         ParseBodyID(rec.ID),
			Name:       rec.Name,
			Kind:       ParseKind(rec.Kind),
			Status:     status,
			IsMainStar: rec.IsMainStar,
			ParentID:   ParseBodyID(rec.parent()),
		}
		if rec.Position != nil {
			b.Physics = &Snapshot{MassKg: rec.MassKg, Position: vec(*rec.Position)}
			if rec.Velocity != nil {
				b.Physics.Velocity = vec(*rec.Velocity)
			}
		}
		if rec.SemiMajorAxisM > 0 {
			b.Orbit = &Orbit{SemiMajorAxisM: rec.SemiMajorAxisM, Eccentricity: rec.Eccentricity}
		}
		if err := reg.Add(b); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}
	return reg, nil
}

// ApplyToRecords writes parent links and main-star flags from reg back into
// records, using the records' own id strings. Both parent fields are set so a
// reload resolves to the same parent.
func ApplyToRecords(records []BodyRecord, reg *Registry) {
	source := make(map[BodyID]string, len(records))
	for _, rec := range records {
		source[ParseBodyID(rec.ID)] = rec.ID
	}
	for i := range records {
		b, ok := reg.Get(ParseBodyID(records[i].ID))
		if !ok {
			continue
		}
		parent := ""
		if b.HasParent() {
			parent, ok = source[b.ParentID]
			if !ok {
				parent = b.ParentID.String()
			}
		}
		records[i].ParentID = parent
		records[i].CurrentParentID = parent
		records[i].IsMainStar = b.IsMainStar
	}
}

func vec(v [3]float64) Vector3 {
	return Vector3{X: v[0], Y: v[1], Z: v[2]}
}
