package category

// Category is the canonical category document in the projection store.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Snapshot is the embedded form kept inside book documents (no description).
type Snapshot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (c Category) Snapshot() Snapshot {
	return Snapshot{ID: c.ID, Name: c.Name}
}
