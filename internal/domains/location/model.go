package location

// Location is the canonical location (branch) document.
type Location struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Snapshot is the full copy of a location embedded in book copies.
type Snapshot struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (l Location) Snapshot() Snapshot {
	return Snapshot(l)
}
