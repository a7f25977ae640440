package hierarchy

import (
	"math"
)

// Physical constants
const (
	G  = 6.67430e-11    // Gravitational constant (m³ kg⁻¹ s⁻²)
	AU = 1.495978707e11 // Astronomical unit in meters
)

// Every function here treats missing physics data as "cannot determine":
// infinite distance, zero influence, not bound, no capture. None of them treat
// missing data as zero distance.

// Distance returns the Euclidean distance between two bodies in meters, or
// +Inf when either body has no physics snapshot.
func Distance(a, b *Body) float64 {
	if a == nil || b == nil || a.Physics == nil || b.Physics == nil {
		return math.Inf(1)
	}
	d := a.Physics.Position.Subtract(b.Physics.Position).Magnitude()
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// RelativeSpeed returns the magnitude of the velocity difference in m/s, or
// +Inf when either body has no physics snapshot.
func RelativeSpeed(a, b *Body) float64 {
	if a == nil || b == nil || a.Physics == nil || b.Physics == nil {
		return math.Inf(1)
	}
	v := a.Physics.Velocity.Subtract(b.Physics.Velocity).Magnitude()
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// GravitationalInfluence ranks how strongly source pulls on target:
// mass(source) / distance_AU². It is a ranking score, not a force. It is 0 when
// the distance is zero or infinite or the source mass is unset.
func GravitationalInfluence(source, target *Body) float64 {
	mass := source.Mass()
	if !(mass > 0) || math.IsInf(mass, 0) {
		return 0
	}
	d := Distance(source, target)
	if d == 0 || math.IsInf(d, 0) {
		return 0
	}
	dAU := d / AU
	return mass / (dAU * dAU)
}

// HillRadius approximates the radius inside which a parent's gravity dominates
// over the primary: a * (m_parent / (3 * m_primary))^(1/3). It returns 0 when
// any input is missing or non-positive.
func HillRadius(parentMassKg, parentSemiMajorAxisM, primaryMassKg float64) float64 {
	if !(parentMassKg > 0) || !(parentSemiMajorAxisM > 0) || !(primaryMassKg > 0) {
		return 0
	}
	return parentSemiMajorAxisM * math.Cbrt(parentMassKg/(3*primaryMassKg))
}

// bodyHillRadius is HillRadius fed from the body's own snapshot and orbit.
func bodyHillRadius(b *Body, primaryMassKg float64) float64 {
	return HillRadius(b.Mass(), b.SemiMajorAxis(), primaryMassKg)
}

// SpecificOrbitalEnergy returns 0.5*v² - G*M/r for the child relative to the
// parent, in J/kg. ok is false when it cannot be computed.
func SpecificOrbitalEnergy(child, parent *Body) (energy float64, ok bool) {
	d := Distance(child, parent)
	v := RelativeSpeed(child, parent)
	m := parent.Mass()
	if d == 0 || math.IsInf(d, 0) || math.IsInf(v, 0) || !(m > 0) {
		return 0, false
	}
	return 0.5*v*v - G*m/d, true
}

// EscapeVelocity returns sqrt(2GM/r) for the given mass at distance r, or 0
// when it cannot be computed.
func EscapeVelocity(massKg, distanceM float64) float64 {
	if !(massKg > 0) || !(distanceM > 0) || math.IsInf(distanceM, 0) {
		return 0
	}
	return math.Sqrt(2 * G * massKg / distanceM)
}

// Acceleration returns G*M/r² exerted by source on target, or 0 when it
// cannot be computed.
func Acceleration(source, target *Body) float64 {
	m := source.Mass()
	d := Distance(source, target)
	if !(m > 0) || d == 0 || math.IsInf(d, 0) {
		return 0
	}
	return G * m / (d * d)
}

// IsBound reports whether child is held by parent: it lies within the parent's
// Hill sphere (distance equal to the radius counts as inside) and the two-body
// specific orbital energy is negative.
func IsBound(child, parent *Body, primaryMassKg float64) bool {
	if child == nil || parent == nil {
		return false
	}
	hill := bodyHillRadius(parent, primaryMassKg)
	if hill <= 0 {
		return false
	}
	d := Distance(child, parent)
	if math.IsInf(d, 0) || d > hill {
		return false
	}
	energy, ok := SpecificOrbitalEnergy(child, parent)
	return ok && energy < 0
}

// CanCapture reports whether capturer can take target as a satellite: the
// capturer is more massive, the target lies within the capturer's Hill sphere,
// and their relative speed is below the escape velocity from the capturer at
// that distance.
func CanCapture(capturer, target *Body, primaryMassKg float64) bool {
	if capturer == nil || target == nil || capturer.ID == target.ID {
		return false
	}
	if !(capturer.Mass() > target.Mass()) {
		return false
	}
	hill := bodyHillRadius(capturer, primaryMassKg)
	if hill <= 0 {
		return false
	}
	d := Distance(capturer, target)
	if d == 0 || math.IsInf(d, 0) || d > hill {
		return false
	}
	v := RelativeSpeed(capturer, target)
	if math.IsInf(v, 0) {
		return false
	}
	return v < EscapeVelocity(capturer.Mass(), d)
}
