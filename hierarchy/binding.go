package hierarchy

// RecheckBinding uses the default thresholds. See Config.RecheckBinding.
func RecheckBinding(child, parent *Body, primaryMassKg float64, reg *Registry) bool {
	return DefaultConfig().RecheckBinding(child, parent, primaryMassKg, reg)
}

// RecheckBinding reports whether child is still held by parent. On top of
// IsBound it runs a tug-of-war: if any other Active star pulls on the child
// more than StealMultiplier times harder than the parent does, the child is
// considered stolen.
func (c Config) RecheckBinding(child, parent *Body, primaryMassKg float64, reg *Registry) bool {
	if !IsBound(child, parent, primaryMassKg) {
		return false
	}
	parentAccel := Acceleration(parent, child)
	maxStarAccel := 0.0
	for _, star := range reg.ActiveStars() {
		if star.ID == parent.ID || star.ID == child.ID {
			continue
		}
		if a := Acceleration(star, child); a > maxStarAccel {
			maxStarAccel = a
		}
	}
	return maxStarAccel <= c.StealMultiplier*parentAccel
}

// SweepForEscapes uses the default thresholds. See Config.SweepForEscapes.
func SweepForEscapes(reg *Registry, primaryMassKg float64) map[BodyID]BodyID {
	return DefaultConfig().SweepForEscapes(reg, primaryMassKg)
}

// SweepForEscapes finds Active non-star bodies that should move to their
// nearest star: those whose parent is gone or inactive, and those that fail
// RecheckBinding while sitting beyond EscapeHillFactor Hill radii of their
// parent. When the parent's Hill radius cannot be computed the pair is left
// alone. The result maps child to new parent; the registry is not touched.
func (c Config) SweepForEscapes(reg *Registry, primaryMassKg float64) map[BodyID]BodyID {
	moves := make(map[BodyID]BodyID)
	for _, child := range reg.bodies {
		if !child.IsActive() || child.Kind == KindStar || !child.HasParent() {
			continue
		}
		parent, ok := reg.Parent(child)
		if ok && parent.IsActive() {
			hill := bodyHillRadius(parent, primaryMassKg)
			if hill <= 0 {
				continue
			}
			if c.RecheckBinding(child, parent, primaryMassKg, reg) {
				continue
			}
			if Distance(child, parent) <= c.EscapeHillFactor*hill {
				continue
			}
		}
		star := FindNearestStar(child, reg, nil)
		if star == nil || star.ID == child.ParentID {
			continue
		}
		moves[child.ID] = star.ID
	}
	return moves
}
