package book

import "library-sync/internal/domains/location"

// Copy states
const (
	StateGood    = "good"
	StateDamaged = "damaged"
)

// BookCopy is a physical copy of a book. Location is a full snapshot of the
// branch holding it, not a reference.
type BookCopy struct {
	ID        int64              `json:"id"`
	BookID    int64              `json:"book_id"`
	PrintDate string             `json:"print_date,omitempty"`
	Note      string             `json:"note,omitempty"`
	State     string             `json:"state,omitempty"`
	Location  *location.Snapshot `json:"location,omitempty"`
}

// LocationID returns the id of the embedded location, if any.
func (c BookCopy) LocationID() (int64, bool) {
	if c.Location == nil {
		return 0, false
	}
	return c.Location.ID, true
}
