package hierarchy

import (
	"fmt"
	"strings"
)

// InvariantError lists every hierarchy invariant a registry breaks.
type InvariantError struct {
	Problems []string
}

func (e *InvariantError) Error() string {
	return "hierarchy invariants violated: " + strings.Join(e.Problems, "; ")
}

// Validate checks the parent graph:
//   - no body is its own ancestor;
//   - exactly one Active star is main, unless no Active star exists;
//   - no Active body points at a missing or inactive parent.
//
// It returns nil or an *InvariantError.
func (r *Registry) Validate() error {
	var problems []string

	for _, b := range r.bodies {
		if b.HasParent() && (b.ParentID == b.ID || r.IsAncestor(b.ID, b.ParentID)) {
			problems = append(problems, fmt.Sprintf("cycle through %s", b.Label()))
		}
	}

	stars, mains := 0, 0
	for _, b := range r.bodies {
		if !b.IsActive() || b.Kind != KindStar {
			continue
		}
		stars++
		if b.IsMainStar {
			mains++
		}
	}
	if mains > 1 {
		problems = append(problems, fmt.Sprintf("%d main stars", mains))
	}
	if stars > 0 && mains == 0 {
		problems = append(problems, "no main star")
	}

	for _, b := range r.bodies {
		if !b.IsActive() || !b.HasParent() {
			continue
		}
		parent, ok := r.Parent(b)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s points at missing parent %s", b.Label(), b.ParentID))
		} else if !parent.IsActive() {
			problems = append(problems, fmt.Sprintf("%s points at %s parent %s", b.Label(), parent.Status, parent.Label()))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &InvariantError{Problems: problems}
}

// Drifting returns Active non-star bodies with no parent.
func (r *Registry) Drifting() []*Body {
	var out []*Body
	for _, b := range r.bodies {
		if b.IsActive() && b.Kind != KindStar && !b.HasParent() {
			out = append(out, b)
		}
	}
	return out
}
