package region

import "sync/atomic"

// Store holds the session's current Area. Writers publish whole rectangles and
// readers always observe a complete, validated value.
type Store struct {
	current atomic.Pointer[Area]
}

// NewStore creates a Store holding initial, or the full frame if initial is invalid.
func NewStore(initial Area) *Store {
	if initial.Validate() != nil {
		initial = Full()
	}
	s := &Store{}
	s.current.Store(&initial)
	return s
}

// Load returns the current area.
func (s *Store) Load() Area {
	return *s.current.Load()
}

// Update replaces the current area. A degenerate area is rejected and the
// previous value is kept.
func (s *Store) Update(a Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.current.Store(&a)
	return nil
}
