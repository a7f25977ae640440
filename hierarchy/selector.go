package hierarchy

import (
	"math"
)

// FindBestParent uses the default thresholds. See Config.FindBestParent.
func FindBestParent(target *Body, reg *Registry, exclude IDSet) *Body {
	return DefaultConfig().FindBestParent(target, reg, exclude)
}

// FindBestParent picks the single best gravitational parent for target.
//
// Candidates are Active bodies other than target and anything in exclude:
//   - stars, for any non-star target;
//   - for moons and asteroid fields, also gas giants, and planets heavier than
//     the target;
//   - for stars, only stars heavier than the target.
//
// Planets and gas giants take the star with the highest influence. Everything
// else ranks by influence, with non-stellar candidates farther than
// PenaltyOnsetAU scaled down by exp(-PenaltyRatePerAU * d_AU). Ties go to the
// first candidate in registry order. Candidates whose score cannot be computed
// (zero influence) are never picked; nil means no eligible parent.
func (c Config) FindBestParent(target *Body, reg *Registry, exclude IDSet) *Body {
	if target == nil || reg == nil {
		return nil
	}
	var best *Body
	bestScore := 0.0
	for _, cand := range reg.bodies {
		if !c.eligible(target, cand, exclude) {
			continue
		}
		score := c.score(target, cand)
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func (c Config) eligible(target, cand *Body, exclude IDSet) bool {
	if cand.ID == target.ID || exclude.Has(cand.ID) || !cand.IsActive() {
		return false
	}
	switch target.Kind {
	case KindStar:
		return cand.Kind == KindStar && cand.Mass() > target.Mass()
	case KindPlanet, KindGasGiant:
		return cand.Kind == KindStar
	case KindMoon, KindAsteroidField:
		switch cand.Kind {
		case KindStar, KindGasGiant:
			return true
		case KindPlanet:
			return cand.Mass() > target.Mass()
		}
		return false
	}
	return cand.Kind == KindStar
}

func (c Config) score(target, cand *Body) float64 {
	influence := GravitationalInfluence(cand, target)
	if target.Kind.IsPlanetary() || cand.Kind == KindStar {
		return influence
	}
	dAU := Distance(cand, target) / AU
	if dAU > c.PenaltyOnsetAU {
		influence *= math.Exp(-c.PenaltyRatePerAU * dAU)
	}
	return influence
}

// FindNearestStar returns the Active star closest to target, ignoring target
// itself and anything in exclude. Stars at unknown distance are skipped; ties
// go to the first star in registry order.
func FindNearestStar(target *Body, reg *Registry, exclude IDSet) *Body {
	if target == nil || reg == nil {
		return nil
	}
	var nearest *Body
	bestDist := math.Inf(1)
	for _, star := range reg.ActiveStars() {
		if star.ID == target.ID || exclude.Has(star.ID) {
			continue
		}
		d := Distance(star, target)
		if d < bestDist {
			nearest, bestDist = star, d
		}
	}
	return nearest
}
