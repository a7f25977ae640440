// scenario-check runs the reference reassignment scenarios against the
// hierarchy engine and prints what each body ended up orbiting.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"stellar-hierarchy/hierarchy"
)

type scenario struct {
	name  string
	about string
	run   func(*hierarchy.Engine) error
}

func main() {
	verbose := flag.Bool("v", false, "Show engine log output")
	flag.Parse()

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stdout, "    engine: ", 0)
	}
	engine := hierarchy.NewEngine(hierarchy.DefaultConfig(), logger)

	scenarios := []scenario{
		{"A", "planet destroyed, lone moon falls back to the star", scenarioA},
		{"B", "main star destroyed, secondary takes over", scenarioB},
		{"C", "gas giant destroyed, large moon captures small moon", scenarioC},
		{"D1", "planet switches to a star with twice the influence", scenarioD(20, true)},
		{"D2", "planet keeps its star when the rival is only 1.2x", scenarioD(12, false)},
	}

	fmt.Println("Hierarchy Reassignment Scenarios")
	fmt.Println("================================")

	failed := 0
	for _, sc := range scenarios {
		fmt.Printf("\nScenario %s: %s\n", sc.name, sc.about)
		if err := sc.run(engine); err != nil {
			fmt.Printf("  ✗ %v\n", err)
			failed++
			continue
		}
		fmt.Printf("  ✓ pass\n")
	}

	fmt.Printf("\n%d/%d scenarios passed\n", len(scenarios)-failed, len(scenarios))
	if failed > 0 {
		os.Exit(1)
	}
}

func body(name string, kind hierarchy.Kind, mass, x float64) *hierarchy.Body {
	return &hierarchy.Body{
		ID:      hierarchy.ParseBodyID(name),
		Name:    name,
		Kind:    kind,
		Physics: &hierarchy.Snapshot{MassKg: mass, Position: hierarchy.Vector3{X: x}},
	}
}

func registry(bodies ...*hierarchy.Body) (*hierarchy.Registry, error) {
	reg := hierarchy.NewRegistry()
	for _, b := range bodies {
		if err := reg.Add(b); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func destroy(engine *hierarchy.Engine, reg *hierarchy.Registry, bodies ...*hierarchy.Body) (hierarchy.ChangeLog, error) {
	ids := make([]hierarchy.BodyID, 0, len(bodies))
	for _, b := range bodies {
		if err := reg.SetStatus(b.ID, hierarchy.StatusDestroyed); err != nil {
			return nil, err
		}
		ids = append(ids, b.ID)
	}
	changes, err := engine.HandleDestruction(reg, ids)
	if err != nil {
		return nil, err
	}
	printChanges(reg, changes)
	return changes, reg.Validate()
}

func printChanges(reg *hierarchy.Registry, changes hierarchy.ChangeLog) {
	name := func(id hierarchy.BodyID) string {
		if b, ok := reg.Get(id); ok {
			return b.Name
		}
		return "(none)"
	}
	for _, c := range changes {
		fmt.Printf("  %s: %s → %s (%s)\n", name(c.BodyID), name(c.OldParent), name(c.NewParent), c.Reason)
	}
}

func expectParent(b, want *hierarchy.Body) error {
	if want == nil {
		if b.HasParent() {
			return fmt.Errorf("%s should have no parent", b.Name)
		}
		return nil
	}
	if b.ParentID != want.ID {
		return fmt.Errorf("%s should orbit %s", b.Name, want.Name)
	}
	return nil
}

func scenarioA(engine *hierarchy.Engine) error {
	star := body("star", hierarchy.KindStar, 1e30, 0)
	star.IsMainStar = true
	planet := body("planet", hierarchy.KindPlanet, 6e24, hierarchy.AU)
	planet.ParentID = star.ID
	planet.Orbit = &hierarchy.Orbit{SemiMajorAxisM: hierarchy.AU}
	moon := body("moon", hierarchy.KindMoon, 7e22, hierarchy.AU+3.8e8)
	moon.ParentID = planet.ID

	reg, err := registry(star, planet, moon)
	if err != nil {
		return err
	}
	if _, err := destroy(engine, reg, planet); err != nil {
		return err
	}
	return expectParent(moon, star)
}

func scenarioB(engine *hierarchy.Engine) error {
	primary := body("primary", hierarchy.KindStar, 2e30, 0)
	primary.IsMainStar = true
	secondary := body("secondary", hierarchy.KindStar, 1e30, 100*hierarchy.AU)

	reg, err := registry(primary, secondary)
	if err != nil {
		return err
	}
	if _, err := destroy(engine, reg, primary); err != nil {
		return err
	}
	if !secondary.IsMainStar {
		return fmt.Errorf("secondary was not promoted to main star")
	}
	return expectParent(secondary, nil)
}

func scenarioC(engine *hierarchy.Engine) error {
	const giantOrbit = 7.8e11
	star := body("star", hierarchy.KindStar, 2e30, 0)
	star.IsMainStar = true
	giant := body("giant", hierarchy.KindGasGiant, 1.9e27, giantOrbit)
	giant.ParentID = star.ID
	giant.Orbit = &hierarchy.Orbit{SemiMajorAxisM: giantOrbit}

	moonA := body("moon-a", hierarchy.KindMoon, 5e22, giantOrbit+4e8)
	moonA.ParentID = giant.ID
	moonA.Orbit = &hierarchy.Orbit{SemiMajorAxisM: giantOrbit}
	moonA.Physics.Velocity = hierarchy.Vector3{Y: 13000}
	moonB := body("moon-b", hierarchy.KindMoon, 1e21, giantOrbit+4e8+1e7)
	moonB.ParentID = giant.ID
	moonB.Physics.Velocity = hierarchy.Vector3{Y: 13010}

	hill := hierarchy.HillRadius(moonA.Mass(), moonA.SemiMajorAxis(), star.Mass())
	fmt.Printf("  moon-b sits %s km from moon-a, whose Hill radius is %s km\n",
		humanize.Comma(int64(hierarchy.Distance(moonA, moonB)/1000)), humanize.Comma(int64(hill/1000)))

	reg, err := registry(star, giant, moonB, moonA)
	if err != nil {
		return err
	}
	if _, err := destroy(engine, reg, giant); err != nil {
		return err
	}
	if err := expectParent(moonB, moonA); err != nil {
		return err
	}
	return expectParent(moonA, star)
}

// scenarioD places both stars exactly 1 AU from the planet, so the influence
// score equals the star mass.
func scenarioD(rivalInfluence float64, wantSwitch bool) func(*hierarchy.Engine) error {
	return func(engine *hierarchy.Engine) error {
		star1 := body("star1", hierarchy.KindStar, 10, hierarchy.AU)
		star1.IsMainStar = true
		star2 := body("star2", hierarchy.KindStar, rivalInfluence, -hierarchy.AU)
		planet := body("planet", hierarchy.KindPlanet, 1, 0)
		planet.ParentID = star1.ID

		reg, err := registry(star1, star2, planet)
		if err != nil {
			return err
		}
		fmt.Printf("  influence: star1 %s, star2 %s\n",
			humanize.FtoaWithDigits(hierarchy.GravitationalInfluence(star1, planet), 2),
			humanize.FtoaWithDigits(hierarchy.GravitationalInfluence(star2, planet), 2))

		printChanges(reg, engine.ReassignCompetitiveStars(reg))
		if wantSwitch {
			return expectParent(planet, star2)
		}
		return expectParent(planet, star1)
	}
}
