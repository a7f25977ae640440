package hierarchy

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBody      = errors.New("unknown body")
	ErrDuplicateBody    = errors.New("duplicate body id")
	ErrCycle            = errors.New("parent assignment would create a cycle")
	ErrStatusRegression = errors.New("status can only move forward")
	ErrNoActiveStar     = errors.New("no active star remains")
)

// Registry owns every body of one system. Bodies are kept in insertion order,
// which is the tie-break order for every selection in this package. Children
// are never stored; they are derived from parent ids on demand.
//
// A Registry is not safe for concurrent use. The host serialises access.
type Registry struct {
	bodies []*Body
	index  map[BodyID]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{index: make(map[BodyID]int)}
}

// Add inserts a body. The parent does not have to exist yet.
func (r *Registry) Add(b *Body) error {
	if b == nil || b.ID == NoParent {
		return fmt.Errorf("add body: missing id")
	}
	if _, exists := r.index[b.ID]; exists {
		return fmt.Errorf("add body %s: %w", b.ID, ErrDuplicateBody)
	}
	r.index[b.ID] = len(r.bodies)
	r.bodies = append(r.bodies, b)
	return nil
}

// Get looks a body up by id
func (r *Registry) Get(id BodyID) (*Body, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.bodies[i], true
}

func (r *Registry) Len() int {
	return len(r.bodies)
}

// Bodies returns every body in registry order.
func (r *Registry) Bodies() []*Body {
	out := make([]*Body, len(r.bodies))
	copy(out, r.bodies)
	return out
}

// Active returns the Active bodies in registry order.
func (r *Registry) Active() []*Body {
	out := make([]*Body, 0, len(r.bodies))
	for _, b := range r.bodies {
		if b.IsActive() {
			out = append(out, b)
		}
	}
	return out
}

// ActiveStars returns the Active stars in registry order.
func (r *Registry) ActiveStars() []*Body {
	var out []*Body
	for _, b := range r.bodies {
		if b.IsActive() && b.Kind == KindStar {
			out = append(out, b)
		}
	}
	return out
}

// Children returns the Active bodies whose parent is id.
func (r *Registry) Children(id BodyID) []*Body {
	var out []*Body
	for _, b := range r.bodies {
		if b.IsActive() && b.ParentID == id {
			out = append(out, b)
		}
	}
	return out
}

// Parent resolves a body's parent. ok is false when there is no parent or the
// id does not resolve.
func (r *Registry) Parent(b *Body) (*Body, bool) {
	if b == nil || !b.HasParent() {
		return nil, false
	}
	return r.Get(b.ParentID)
}

// MainStar returns the Active star flagged as main, if any.
func (r *Registry) MainStar() *Body {
	for _, b := range r.bodies {
		if b.IsActive() && b.Kind == KindStar && b.IsMainStar {
			return b
		}
	}
	return nil
}

// PrimaryMass is the mass used as the dominant third body in Hill-sphere
// calculations: the main star, or the heaviest Active star when none is flagged.
func (r *Registry) PrimaryMass() float64 {
	if main := r.MainStar(); main != nil {
		return main.Mass()
	}
	if heaviest := r.heaviestStar(); heaviest != nil {
		return heaviest.Mass()
	}
	return 0
}

// heaviestStar picks the most massive Active star, first in registry order on ties.
func (r *Registry) heaviestStar() *Body {
	var best *Body
	for _, b := range r.ActiveStars() {
		if best == nil || b.Mass() > best.Mass() {
			best = b
		}
	}
	return best
}

// IsAncestor reports whether ancestor appears on the parent chain of id.
func (r *Registry) IsAncestor(ancestor, id BodyID) bool {
	seen := make(map[BodyID]bool)
	current, ok := r.Get(id)
	for ok && current.HasParent() {
		if current.ParentID == ancestor {
			return true
		}
		if seen[current.ParentID] {
			return false
		}
		seen[current.ParentID] = true
		current, ok = r.Get(current.ParentID)
	}
	return false
}

// SetParent points id at parent. Passing NoParent makes the body a root.
// It returns the previous parent.
func (r *Registry) SetParent(id, parent BodyID) (BodyID, error) {
	b, ok := r.Get(id)
	if !ok {
		return NoParent, fmt.Errorf("set parent of %s: %w", id, ErrUnknownBody)
	}
	old := b.ParentID
	if parent == NoParent {
		b.ParentID = NoParent
		return old, nil
	}
	if _, ok := r.Get(parent); !ok {
		return old, fmt.Errorf("set parent of %s to %s: %w", id, parent, ErrUnknownBody)
	}
	if parent == id || r.IsAncestor(id, parent) {
		return old, fmt.Errorf("set parent of %s to %s: %w", id, parent, ErrCycle)
	}
	b.ParentID = parent
	return old, nil
}

// SetStatus moves a body along Active → Destroyed → Annihilated.
func (r *Registry) SetStatus(id BodyID, status Status) error {
	b, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("set status of %s: %w", id, ErrUnknownBody)
	}
	if status < b.Status {
		return fmt.Errorf("set status of %s from %s to %s: %w", id, b.Status, status, ErrStatusRegression)
	}
	b.Status = status
	return nil
}

// UpdatePhysics replaces a body's snapshot. Only the host calls this, between
// engine runs.
func (r *Registry) UpdatePhysics(id BodyID, snap Snapshot) error {
	b, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("update physics of %s: %w", id, ErrUnknownBody)
	}
	s := snap
	b.Physics = &s
	return nil
}

// Clone deep-copies the registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for _, b := range r.bodies {
		c.index[b.ID] = len(c.bodies)
		c.bodies = append(c.bodies, b.Clone())
	}
	return c
}

// IDSet is a set of body ids.
type IDSet map[BodyID]struct{}

// NewIDSet builds a set from ids
func NewIDSet(ids ...BodyID) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has is safe to call on a nil set.
func (s IDSet) Has(id BodyID) bool {
	_, ok := s[id]
	return ok
}
