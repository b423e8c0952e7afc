package state

import "errors"

var (
	// ErrMissingStrokeID is returned by Start for a stroke without an id.
	ErrMissingStrokeID = errors.New("stroke has no id")
	// ErrDuplicateStroke is returned by Start when the id is already stored.
	ErrDuplicateStroke = errors.New("stroke id already exists")
)

type strokeEntry struct {
	stroke Stroke
	sealed bool
}

// StrokeStore is the authoritative, insertion-ordered collection of strokes.
//
// A StrokeStore is not safe for concurrent use. The server hub owns it and
// serializes every call through its processing goroutine.
type StrokeStore struct {
	entries []*strokeEntry
	index   map[string]int // stroke id -> position in entries
}

// NewStrokeStore creates an empty store.
func NewStrokeStore() *StrokeStore {
	return &StrokeStore{
		entries: make([]*strokeEntry, 0),
		index:   make(map[string]int),
	}
}

// Len returns the number of stored strokes.
func (s *StrokeStore) Len() int {
	return len(s.entries)
}

// Snapshot returns a deep copy of all strokes in the order they were started.
func (s *StrokeStore) Snapshot() []Stroke {
	out := make([]Stroke, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.stroke.Clone())
	}
	return out
}

// Get returns a copy of the stroke with the given id.
func (s *StrokeStore) Get(id string) (Stroke, bool) {
	i, ok := s.index[id]
	if !ok {
		return Stroke{}, false
	}
	return s.entries[i].stroke.Clone(), true
}

// Start appends a new stroke at the end of the order. Duplicate ids are
// rejected and leave the store untouched.
func (s *StrokeStore) Start(stroke Stroke) error {
	if stroke.ID == "" {
		return ErrMissingStrokeID
	}
	if _, exists := s.index[stroke.ID]; exists {
		return ErrDuplicateStroke
	}
	s.index[stroke.ID] = len(s.entries)
	s.entries = append(s.entries, &strokeEntry{stroke: stroke.Clone()})
	return nil
}

// AppendPoint adds a point to a stroke. Unknown ids are ignored. Points are
// not range checked; producers clamp them.
func (s *StrokeStore) AppendPoint(id string, p Point) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	e := s.entries[i]
	e.stroke.Points = append(e.stroke.Points, p)
	return true
}

// Seal marks a stroke as finished. It changes no stroke data and later
// points are still accepted.
func (s *StrokeStore) Seal(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.entries[i].sealed = true
	return true
}

// Sealed reports whether Seal was called for the stroke.
func (s *StrokeStore) Sealed(id string) bool {
	i, ok := s.index[id]
	return ok && s.entries[i].sealed
}

// RemoveMostRecentByUser removes the last started stroke owned by userID.
func (s *StrokeStore) RemoveMostRecentByUser(userID string) (Stroke, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].stroke.UserID != userID {
			continue
		}
		removed := s.entries[i].stroke
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		s.reindex()
		return removed, true
	}
	return Stroke{}, false
}

// Reset replaces the whole content with strokes, keeping their order.
// Strokes without an id and repeated ids are skipped.
func (s *StrokeStore) Reset(strokes []Stroke) {
	s.entries = make([]*strokeEntry, 0, len(strokes))
	s.index = make(map[string]int, len(strokes))
	for _, st := range strokes {
		if st.ID == "" {
			continue
		}
		if _, exists := s.index[st.ID]; exists {
			continue
		}
		s.index[st.ID] = len(s.entries)
		s.entries = append(s.entries, &strokeEntry{stroke: st.Clone()})
	}
}

func (s *StrokeStore) reindex() {
	s.index = make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		s.index[e.stroke.ID] = i
	}
}
