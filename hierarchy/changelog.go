package hierarchy

// Reason says which rule moved a body.
type Reason string

const (
	ReasonMainStarPromoted Reason = "main_star_promoted"
	ReasonStarOrphaned     Reason = "star_orphaned"
	ReasonPlanetOrphaned   Reason = "planet_orphaned"
	ReasonCaptured         Reason = "captured"
	ReasonFanOut           Reason = "planet_destroyed"
	ReasonRepair           Reason = "dangling_parent"
	ReasonCompetitive      Reason = "competitive_star"
	ReasonEscaped          Reason = "escaped"
	ReasonAdopted          Reason = "orphan_adopted"
)

// Change records one parent mutation. NoParent stands for "none" on either side.
type Change struct {
	BodyID    BodyID `json:"body_id"`
	OldParent BodyID `json:"old_parent_id"`
	NewParent BodyID `json:"new_parent_id"`
	Reason    Reason `json:"reason"`
}

// ChangeLog is the ordered list of mutations made by one engine run.
type ChangeLog []Change

// For returns the last change recorded for a body.
func (l ChangeLog) For(id BodyID) (Change, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].BodyID == id {
			return l[i], true
		}
	}
	return Change{}, false
}

// ByReason counts changes per reason.
func (l ChangeLog) ByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, c := range l {
		counts[c.Reason]++
	}
	return counts
}
