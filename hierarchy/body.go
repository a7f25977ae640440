// Package hierarchy decides which body each other body orbits in a dynamic
// star system, and repairs the parent graph when bodies are destroyed.
package hierarchy

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// BodyID is the stable identifier of a body. uuid.Nil means "no body".
type BodyID = uuid.UUID

// NoParent marks a hierarchy root.
var NoParent = uuid.Nil

// bodyNamespace seeds deterministic ids for source strings that are not UUIDs.
var bodyNamespace = uuid.MustParse("6b1d4c8e-3f2a-5e7b-9c0d-a1b2c3d4e5f6")

// ParseBodyID converts a source id into a BodyID. UUID strings are parsed as-is,
// anything else is hashed into a name-based UUID so the mapping is stable.
func ParseBodyID(s string) BodyID {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoParent
	}
	if id, err := uuid.Parse(s); err == nil {
		return id
	}
	return uuid.NewSHA1(bodyNamespace, []byte(s))
}

// Kind is the classification of a body.
type Kind int

const (
	KindOther Kind = iota
	KindStar
	KindPlanet
	KindGasGiant
	KindMoon
	KindAsteroidField
	KindOortCloud
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	KindStar:          "star",
	KindPlanet:        "planet",
	KindGasGiant:      "gas_giant",
	KindMoon:          "moon",
	KindAsteroidField: "asteroid_field",
	KindOortCloud:     "oort_cloud",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "other"
}

// ParseKind accepts both "gas_giant" and "GAS_GIANT" style names.
// Unknown names map to KindOther.
func ParseKind(s string) Kind {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	for k, name := range kindNames {
		if name == norm {
			return k
		}
	}
	switch norm {
	case "gasgiant", "ice_giant":
		return KindGasGiant
	case "asteroids", "asteroid_belt", "asteroidfield":
		return KindAsteroidField
	case "oortcloud":
		return KindOortCloud
	}
	return KindOther
}

// IsPlanetary reports whether the kind is a Planet or GasGiant.
func (k Kind) IsPlanetary() bool {
	return k == KindPlanet || k == KindGasGiant
}

// MarshalText lets kinds appear as names in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// Status is the lifecycle state of a body. It only ever moves forward.
type Status int

const (
	StatusActive Status = iota
	StatusDestroyed
	StatusAnnihilated
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDestroyed:
		return "destroyed"
	case StatusAnnihilated:
		return "annihilated"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus maps a status name onto a Status. Empty means active.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "active":
		return StatusActive, nil
	case "destroyed":
		return StatusDestroyed, nil
	case "annihilated":
		return StatusAnnihilated, nil
	}
	return StatusActive, fmt.Errorf("unknown status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Vector3 is a position (m) or velocity (m/s) in the system frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vector3) Subtract(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{X: v.X * factor, Y: v.Y * factor, Z: v.Z * factor}
}

// Magnitude returns the Euclidean length of the vector
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Snapshot is the physics state written by the integrator. The engine reads it
// and never writes it.
type Snapshot struct {
	MassKg   float64 `json:"mass_kg"`
	Position Vector3 `json:"position_m"`
	Velocity Vector3 `json:"velocity_mps"`
}

// Orbit holds the elements of a body's current orbit around its parent.
type Orbit struct {
	SemiMajorAxisM float64 `json:"semi_major_axis_m"`
	Eccentricity   float64 `json:"eccentricity"`
	InclinationDeg float64 `json:"inclination_deg,omitempty"`
	PeriodSeconds  float64 `json:"period_s,omitempty"`
}

// Body is the canonical unit of the hierarchy.
type Body struct {
	ID         BodyID    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Physics    *Snapshot `json:"physics,omitempty"` // nil when the integrator has no state for it
	Orbit      *Orbit    `json:"orbit,omitempty"`
	ParentID   BodyID    `json:"parent_id"`
	IsMainStar bool      `json:"is_main_star"`
}

// IsActive reports whether the body takes part in parent selection.
func (b *Body) IsActive() bool {
	return b != nil && b.Status == StatusActive
}

// HasParent reports whether the body points at a parent.
func (b *Body) HasParent() bool {
	return b.ParentID != NoParent
}

// Mass returns the snapshot mass, or 0 when there is no snapshot.
func (b *Body) Mass() float64 {
	if b == nil || b.Physics == nil {
		return 0
	}
	return b.Physics.MassKg
}

// SemiMajorAxis returns the current orbit's semi-major axis, or 0 when unknown.
func (b *Body) SemiMajorAxis() float64 {
	if b == nil || b.Orbit == nil {
		return 0
	}
	return b.Orbit.SemiMajorAxisM
}

// Label is used in log lines.
func (b *Body) Label() string {
	if b == nil {
		return "(none)"
	}
	if b.Name != "" {
		return fmt.Sprintf("%s (%s)", b.Name, b.ID.String()[:8])
	}
	return b.ID.String()[:8]
}

// Clone returns a deep copy of the body.
func (b *Body) Clone() *Body {
	c := *b
	if b.Physics != nil {
		p := *b.Physics
		c.Physics = &p
	}
	if b.Orbit != nil {
		o := *b.Orbit
		c.Orbit = &o
	}
	return &c
}
