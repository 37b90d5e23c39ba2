package author

// BookRef is the short form of a book kept on the canonical author document.
type BookRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Author is the canonical author document in the projection store.
type Author struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Books       []BookRef `json:"books,omitempty"`
}

// Snapshot is the part of an author embedded in book documents.
// Description and the authored-book list never leave the canonical document.
type Snapshot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Snapshot projects the canonical document onto its embedded form.
func (a Author) Snapshot() Snapshot {
	return Snapshot{ID: a.ID, Name: a.Name}
}
