package hierarchy

import (
	"log"
	"sort"
)

// Engine re-derives parent links. It is synchronous and keeps no state
// between runs: every method takes the registry it should work on, runs to
// completion and returns the parent changes it made.
//
// Callers must not mutate the registry or its physics snapshots while a
// method is running.
type Engine struct {
	Config Config
	Logger *log.Logger
}

// NewEngine creates an engine. A nil logger means log.Default().
func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{Config: cfg.WithDefaults(), Logger: logger}
}

// run accumulates the changes of one engine invocation.
type run struct {
	e       *Engine
	reg     *Registry
	changes ChangeLog
	drifted []*Body
}

func (e *Engine) newRun(reg *Registry) *run {
	if e.Logger == nil {
		e.Logger = log.Default()
	}
	return &run{e: e, reg: reg}
}

// assign moves b under parent and records the change. Refused moves (cycles,
// unknown ids) are logged and leave b where it was.
func (r *run) assign(b *Body, parent BodyID, reason Reason) bool {
	if b.ParentID == parent {
		return true
	}
	old, err := r.reg.SetParent(b.ID, parent)
	if err != nil {
		r.e.Logger.Printf("Warning: cannot move %s: %v", b.Label(), err)
		return false
	}
	r.changes = append(r.changes, Change{BodyID: b.ID, OldParent: old, NewParent: parent, Reason: reason})
	if parent == NoParent && b.Kind != KindStar {
		r.drifted = append(r.drifted, b)
	}
	return true
}

// assignTo is assign with a possibly nil parent body; nil orphans b.
func (r *run) assignTo(b *Body, parent *Body, reason Reason) bool {
	if parent == nil {
		return r.assign(b, NoParent, reason)
	}
	return r.assign(b, parent.ID, reason)
}

// finish reports drifting bodies and checks invariants.
func (r *run) finish() ChangeLog {
	for _, b := range r.drifted {
		if b.IsActive() && !b.HasParent() {
			r.e.Logger.Printf("Warning: %s %s has no parent and is drifting", b.Kind, b.Label())
		}
	}
	assertInvariants(r.e.Logger, r.reg.Validate())
	return r.changes
}

// mainStar returns the flagged main star unless it is in gone.
func (r *run) mainStar(gone IDSet) *Body {
	main := r.reg.MainStar()
	if main == nil || gone.Has(main.ID) {
		return nil
	}
	return main
}

// promoteMainStar makes the most massive Active star outside gone the only
// main star and turns it into a root. Ties go to registry order.
func (r *run) promoteMainStar(gone IDSet) *Body {
	var next *Body
	for _, star := range r.reg.ActiveStars() {
		if gone.Has(star.ID) {
			continue
		}
		if next == nil || star.Mass() > next.Mass() {
			next = star
		}
	}
	if next == nil {
		return nil
	}
	for _, b := range r.reg.bodies {
		b.IsMainStar = b.ID == next.ID
	}
	r.assign(next, NoParent, ReasonMainStarPromoted)
	r.e.Logger.Printf("Promoted %s to main star", next.Label())
	return next
}

// ensureMainStar keeps exactly one main star among the Active stars outside gone.
func (r *run) ensureMainStar(gone IDSet) *Body {
	var flagged []*Body
	for _, star := range r.reg.ActiveStars() {
		if star.IsMainStar && !gone.Has(star.ID) {
			flagged = append(flagged, star)
		}
	}
	switch len(flagged) {
	case 0:
		return r.promoteMainStar(gone)
	case 1:
		main := flagged[0]
		r.assign(main, NoParent, ReasonMainStarPromoted)
		return main
	}
	r.e.Logger.Printf("Warning: %d stars flagged as main, keeping %s", len(flagged), flagged[0].Label())
	for _, star := range flagged[1:] {
		star.IsMainStar = false
	}
	r.assign(flagged[0], NoParent, ReasonMainStarPromoted)
	return flagged[0]
}

// HandleDestruction repairs the hierarchy after the bodies in destroyed left
// the simulation. It runs, in order: main-star replacement, re-parenting of
// stars and planets that orbited a destroyed star, the fan-out of moons of
// destroyed planets, and a final repair of any remaining dangling parent.
//
// Bodies that end up without a parent are valid, if degraded: they are logged
// as drifting. The only error is ErrNoActiveStar, returned when the main star
// was destroyed and no star is left to replace it; the registry is left as it
// was at that point.
func (e *Engine) HandleDestruction(reg *Registry, destroyed []BodyID) (ChangeLog, error) {
	if !e.Config.Dynamic() || len(destroyed) == 0 {
		return nil, nil
	}
	r := e.newRun(reg)
	gone := NewIDSet(destroyed...)

	// Partition the batch.
	var deadStars, deadPlanets []*Body
	mainLost := false
	seen := make(IDSet, len(destroyed))
	for _, id := range destroyed {
		if seen.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		b, ok := reg.Get(id)
		if !ok {
			e.Logger.Printf("Warning: destroyed body %s is not in the registry", id)
			continue
		}
		switch {
		case b.Kind == KindStar:
			deadStars = append(deadStars, b)
			if b.IsMainStar {
				mainLost = true
			}
		case b.Kind.IsPlanetary():
			deadPlanets = append(deadPlanets, b)
		}
	}
	deadStarIDs := make(IDSet, len(deadStars))
	for _, s := range deadStars {
		deadStarIDs[s.ID] = struct{}{}
	}

	// Main-star replacement.
	main := r.mainStar(gone)
	if main == nil {
		main = r.promoteMainStar(gone)
	}
	if main == nil && mainLost {
		e.Logger.Printf("ERROR: main star destroyed and %v; hierarchy left as is", ErrNoActiveStar)
		return r.changes, ErrNoActiveStar
	}
	primary := reg.PrimaryMass()
	if main != nil {
		primary = main.Mass()
	}

	// Stars that orbited a destroyed star move onto the main star.
	if main != nil {
		for _, star := range reg.ActiveStars() {
			if star.ID != main.ID && !gone.Has(star.ID) && deadStarIDs.Has(star.ParentID) {
				r.assign(star, main.ID, ReasonStarOrphaned)
			}
		}
	}

	// Planets and gas giants that orbited a destroyed star.
	for _, b := range reg.bodies {
		if !b.IsActive() || !b.Kind.IsPlanetary() || gone.Has(b.ID) || !deadStarIDs.Has(b.ParentID) {
			continue
		}
		r.assignTo(b, e.Config.FindBestParent(b, reg, gone), ReasonPlanetOrphaned)
	}

	// Moons and fields of destroyed planets.
	for _, planet := range deadPlanets {
		r.fanOut(planet, gone, primary)
	}

	r.repair(main, gone)
	return r.finish(), nil
}

// fanOut redistributes the children of a destroyed planet. With several
// children the heaviest may capture the others; everything not captured goes
// to its nearest star.
func (r *run) fanOut(planet *Body, gone IDSet, primary float64) {
	var children []*Body
	for _, b := range r.reg.Children(planet.ID) {
		if !gone.Has(b.ID) {
			children = append(children, b)
		}
	}
	if len(children) == 0 {
		return
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Mass() > children[j].Mass()
	})

	largest := children[0]
	r.assignTo(largest, FindNearestStar(largest, r.reg, gone), ReasonFanOut)
	for _, child := range children[1:] {
		if CanCapture(largest, child, primary) && r.assign(child, largest.ID, ReasonCaptured) {
			r.e.Logger.Printf("%s captured %s", largest.Label(), child.Label())
			continue
		}
		r.assignTo(child, FindNearestStar(child, r.reg, gone), ReasonFanOut)
	}
}

// repair re-parents every Active body whose parent is missing, inactive or in
// gone. Stars go to the main star; others to their best parent, then their
// nearest star, else nowhere.
func (r *run) repair(main *Body, gone IDSet) {
	for _, b := range r.reg.bodies {
		if !b.IsActive() || !b.HasParent() || gone.Has(b.ID) {
			continue
		}
		parent, ok := r.reg.Parent(b)
		if ok && parent.IsActive() && !gone.Has(parent.ID) {
			continue
		}
		if b.Kind == KindStar {
			if main != nil && main.ID != b.ID {
				r.assign(b, main.ID, ReasonRepair)
			} else {
				r.assign(b, NoParent, ReasonRepair)
			}
			continue
		}
		next := r.e.Config.FindBestParent(b, r.reg, gone)
		if next == nil {
			next = FindNearestStar(b, r.reg, gone)
		}
		r.assignTo(b, next, ReasonRepair)
	}
}

// ReassignCompetitiveStars moves planets and gas giants to a different star
// when that star's influence beats the current parent's by SwitchMargin. The
// margin is hysteresis: running it twice without state changes moves nothing
// the second time. Pairs whose current influence cannot be computed are left
// alone.
func (e *Engine) ReassignCompetitiveStars(reg *Registry) ChangeLog {
	if !e.Config.Dynamic() {
		return nil
	}
	r := e.newRun(reg)
	r.competitive()
	return r.finish()
}

func (r *run) competitive() {
	stars := r.reg.ActiveStars()
	for _, b := range r.reg.bodies {
		if !b.IsActive() || !b.Kind.IsPlanetary() || !b.HasParent() {
			continue
		}
		parent, ok := r.reg.Parent(b)
		if !ok || !parent.IsActive() {
			continue
		}
		current := GravitationalInfluence(parent, b)
		if current <= 0 {
			continue
		}
		var best *Body
		bestInfluence := 0.0
		for _, star := range stars {
			if star.ID == parent.ID {
				continue
			}
			if inf := GravitationalInfluence(star, b); inf > bestInfluence {
				best, bestInfluence = star, inf
			}
		}
		if best != nil && bestInfluence > r.e.Config.SwitchMargin*current {
			r.assign(b, best.ID, ReasonCompetitive)
		}
	}
}

// ApplyEscapes runs SweepForEscapes and commits the moves.
func (e *Engine) ApplyEscapes(reg *Registry) ChangeLog {
	if !e.Config.Dynamic() {
		return nil
	}
	r := e.newRun(reg)
	r.escapes()
	return r.finish()
}

func (r *run) escapes() {
	moves := r.e.Config.SweepForEscapes(r.reg, r.reg.PrimaryMass())
	if len(moves) == 0 {
		return
	}
	for _, b := range r.reg.bodies {
		if star, ok := moves[b.ID]; ok {
			if r.assign(b, star, ReasonEscaped) {
				r.e.Logger.Printf("%s escaped to %s", b.Label(), r.label(star))
			}
		}
	}
}

func (r *run) label(id BodyID) string {
	b, _ := r.reg.Get(id)
	return b.Label()
}

// EnsureMainStar flags the heaviest Active star as main when none is, clears
// extra flags when several are, and makes the main star a root.
func (e *Engine) EnsureMainStar(reg *Registry) ChangeLog {
	if !e.Config.Dynamic() {
		return nil
	}
	r := e.newRun(reg)
	r.ensureMainStar(nil)
	return r.finish()
}

// adopt gives parentless Active non-star bodies their best parent, falling
// back to the nearest star. Bodies for which neither can be computed stay
// drifting.
func (r *run) adopt() {
	for _, b := range r.reg.bodies {
		if !b.IsActive() || b.Kind == KindStar || b.HasParent() {
			continue
		}
		next := r.e.Config.FindBestParent(b, r.reg, nil)
		if next == nil {
			next = FindNearestStar(b, r.reg, nil)
		}
		if next != nil && r.assign(b, next.ID, ReasonAdopted) {
			r.e.Logger.Printf("%s adopted by %s", b.Label(), next.Label())
		}
	}
}

// PeriodicSweep is the non-destruction pass: main-star upkeep, competitive
// star switching, escape detection, repair of parents that went inactive
// without a destruction batch, and adoption of orphans.
func (e *Engine) PeriodicSweep(reg *Registry) ChangeLog {
	if !e.Config.Dynamic() {
		return nil
	}
	r := e.newRun(reg)
	main := r.ensureMainStar(nil)
	r.competitive()
	r.escapes()
	r.repair(main, nil)
	r.adopt()
	return r.finish()
}
