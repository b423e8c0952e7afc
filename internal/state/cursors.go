package state

import "sort"

// CursorTable holds the latest pointer position of every connected user.
// Like StrokeStore it is owned by the hub and is not safe for concurrent use.
type CursorTable struct {
	cursors map[string]CursorPosition
}

// NewCursorTable creates an empty table.
func NewCursorTable() *CursorTable {
	return &CursorTable{cursors: make(map[string]CursorPosition)}
}

// Set records the position for userID, replacing any previous one.
// Coordinates are stored as given.
func (t *CursorTable) Set(userID string, pos CursorPosition) {
	if userID == "" {
		return
	}
	t.cursors[userID] = pos
}

// Remove drops the cursor of userID.
func (t *CursorTable) Remove(userID string) {
	delete(t.cursors, userID)
}

// Get returns the cursor of userID.
func (t *CursorTable) Get(userID string) (Cursor, bool) {
	pos, ok := t.cursors[userID]
	if !ok {
		return Cursor{}, false
	}
	return Cursor{UserID: userID, X: pos.X, Y: pos.Y, Color: pos.Color}, true
}

// Len returns the number of live cursors.
func (t *CursorTable) Len() int {
	return len(t.cursors)
}

// List returns a snapshot of all cursors, sorted by user id.
func (t *CursorTable) List() []Cursor {
	list := make([]Cursor, 0, len(t.cursors))
	for id, pos := range t.cursors {
		list = append(list, Cursor{UserID: id, X: pos.X, Y: pos.Y, Color: pos.Color})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}
