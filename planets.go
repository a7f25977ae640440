package main

import (
	"fmt"
	"math"

	"stellar-hierarchy/hierarchy"
)

// GenerateBodies builds the deterministic body registry of the system: the
// stars, planets on circular orbits around the primary, moons around gas
// giants and, in single-star systems, sometimes an asteroid belt.
func (s *System) GenerateBodies() (*hierarchy.Registry, error) {
	stars := s.GenerateStars()
	reg := hierarchy.NewRegistry()

	primary := &hierarchy.Body{
		ID:         s.bodyID("primary_star"),
		Name:       s.Name,
		Kind:       hierarchy.KindStar,
		IsMainStar: true,
		Physics:    &hierarchy.Snapshot{MassKg: stars.Primary.Mass()},
	}
	if err := reg.Add(primary); err != nil {
		return nil, err
	}

	// Companions orbit the primary well outside the planets
	companions := []struct {
		star  *StarType
		salt  string
		name  string
		minAU float64
		span  uint64
	}{
		{stars.Secondary, "secondary_star", s.Name + " B", 20, 40},
		{stars.Tertiary, "tertiary_star", s.Name + " C", 150, 250},
	}
	for _, c := range companions {
		if c.star == nil {
			continue
		}
		seed := s.DeterministicSeed(c.salt + "_orbit")
		radius := (c.minAU + float64(seed%c.span)) * hierarchy.AU
		star := s.orbitingBody(c.salt, c.name, hierarchy.KindStar, c.star.Mass(), primary, radius, seed)
		if err := reg.Add(star); err != nil {
			return nil, err
		}
	}

	maxPlanets := maxPlanetsFor(stars)
	planetCount := int(s.DeterministicSeed("planet_count")%uint64(maxPlanets)) + 1

	for i := 0; i < planetCount; i++ {
		planet := s.generatePlanet(i, primary)
		if err := reg.Add(planet); err != nil {
			return nil, err
		}
		if planet.Kind != hierarchy.KindGasGiant {
			continue
		}
		for _, moon := range s.generateMoons(i, planet, primary.Mass()) {
			if err := reg.Add(moon); err != nil {
				return nil, err
			}
		}
	}

	if stars.Count == 1 && s.DeterministicSeed("asteroid_belt")%3 == 0 {
		seed := s.DeterministicSeed("asteroid_belt_orbit")
		radius := (2.2 + float64(seed%1000)/1000.0) * hierarchy.AU
		belt := s.orbitingBody("asteroid_belt", s.Name+" Belt", hierarchy.KindAsteroidField, 3e21, primary, radius, seed)
		if err := reg.Add(belt); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// maxPlanetsFor returns the planet cap for a composition
func maxPlanetsFor(stars StarComposition) int {
	var maxPlanets int
	switch stars.Primary.Class {
	case "O", "B":
		maxPlanets = 3
	case "A":
		maxPlanets = 5
	case "F":
		maxPlanets = 7
	case "G":
		maxPlanets = 8
	case "K":
		maxPlanets = 9
	case "M":
		maxPlanets = 10
	default:
		maxPlanets = 5
	}

	// Binary/trinary systems have fewer planets
	switch stars.Count {
	case 2:
		maxPlanets = maxPlanets / 2
	case 3:
		maxPlanets = maxPlanets / 3
	}
	if maxPlanets < 1 {
		maxPlanets = 1
	}
	return maxPlanets
}

func (s *System) generatePlanet(index int, primary *hierarchy.Body) *hierarchy.Body {
	salt := fmt.Sprintf("planet_%d", index)
	seed := s.DeterministicSeed(salt)

	orbitBase := float64(index) * 0.3
	orbitVariation := float64(seed%1000) / 1000.0
	orbitAU := math.Pow(1.5, orbitBase)*(0.3+orbitVariation) + float64(index)*0.4

	kind := hierarchy.KindPlanet
	var massEarths float64
	switch {
	case orbitAU < 0.5:
		massEarths = 0.1 + float64(seed%200)/100.0
	case orbitAU < 2.0:
		massEarths = 0.05 + float64(seed%300)/100.0
	case orbitAU < 8.0:
		if seed%10 < 7 {
			kind = hierarchy.KindGasGiant
			massEarths = 10.0 + float64(seed%30000)/100.0
		} else {
			massEarths = 0.5 + float64(seed%500)/100.0
		}
	default:
		kind = hierarchy.KindGasGiant
		massEarths = 5.0 + float64(seed%2000)/100.0
	}

	return s.orbitingBody(salt, s.generatePlanetName(index), kind, massEarths*EarthMass,
		primary, orbitAU*hierarchy.AU, seed)
}

// generateMoons places up to three moons well inside the giant's Hill sphere
func (s *System) generateMoons(planetIndex int, planet *hierarchy.Body, primaryMass float64) []*hierarchy.Body {
	count := int(s.DeterministicSeed(fmt.Sprintf("moons_%d", planetIndex)) % 4)
	hill := hierarchy.HillRadius(planet.Mass(), planet.SemiMajorAxis(), primaryMass)
	if hill <= 0 {
		return nil
	}

	moons := make([]*hierarchy.Body, 0, count)
	for j := 0; j < count; j++ {
		salt := fmt.Sprintf("moon_%d_%d", planetIndex, j)
		seed := s.DeterministicSeed(salt)
		radius := hill * (0.02 + 0.05*float64(j) + float64(seed%100)/10000.0)
		mass := float64(1+seed%900) * 1e20
		name := fmt.Sprintf("%s %c", planet.Name, 'a'+j)
		moons = append(moons, s.orbitingBody(salt, name, hierarchy.KindMoon, mass, planet, radius, seed))
	}
	return moons
}

// orbitingBody creates a body on a circular orbit of radius around center,
// at a phase angle taken from seed.
func (s *System) orbitingBody(salt, name string, kind hierarchy.Kind, mass float64,
	center *hierarchy.Body, radius float64, seed uint64) *hierarchy.Body {
	angle := float64(seed%3600) / 3600.0 * 2 * math.Pi
	speed := math.Sqrt(hierarchy.G * center.Mass() / radius)

	pos := center.Physics.Position.Add(hierarchy.Vector3{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)})
	vel := center.Physics.Velocity.Add(hierarchy.Vector3{X: -speed * math.Sin(angle), Y: speed * math.Cos(angle)})

	return &hierarchy.Body{
		ID:       s.bodyID(salt),
		Name:     name,
		Kind:     kind,
		ParentID: center.ID,
		Physics:  &hierarchy.Snapshot{MassKg: mass, Position: pos, Velocity: vel},
		Orbit: &hierarchy.Orbit{
			SemiMajorAxisM: radius,
			PeriodSeconds:  2 * math.Pi * radius / speed,
		},
	}
}

func (s *System) generatePlanetName(index int) string {
	romanNumerals := []string{"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X"}
	if index < len(romanNumerals) {
		return s.Name + " " + romanNumerals[index]
	}
	return s.Name + " " + string(rune('A'+index))
}
