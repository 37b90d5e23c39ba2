package book

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"library-sync/internal/domains/author"
	"library-sync/internal/domains/category"
	"library-sync/internal/domains/location"
)

const (
	MaxNameLength = 500
	DateLayout    = "2006-01-02"
)

// CreatePayload - value of a book "create" event. Authors and categories
// arrive as snapshots produced by the write path.
type CreatePayload struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	ISBN        string              `json:"isbn,omitempty"`
	Description string              `json:"description,omitempty"`
	ReleaseDate string              `json:"release_date,omitempty"`
	Authors     []author.Snapshot   `json:"authors,omitempty"`
	Categories  []category.Snapshot `json:"categories,omitempty"`
}

func (p CreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.Required.Error("name is required"), validation.Length(1, MaxNameLength)),
		validation.Field(&p.ISBN, validation.Length(10, 17)),
		validation.Field(&p.ReleaseDate, validation.Date(DateLayout)),
		validation.Field(&p.Authors),
		validation.Field(&p.Categories),
	)
}

// ToBook builds the canonical document with de-duplicated embedded sets
func (p CreatePayload) ToBook() Book {
	b := Book{
		ID:          p.ID,
		Name:        p.Name,
		ISBN:        p.ISBN,
		Description: p.Description,
		ReleaseDate: p.ReleaseDate,
		Authors:     p.Authors,
		Categories:  p.Categories,
	}
	b.Normalize()
	return b
}

// UpdatePayload - value of a book "update" event. Embedded sets, when
// present, replace the stored ones wholesale.
type UpdatePayload struct {
	ID          int64                `json:"id"`
	Name        *string              `json:"name,omitempty"`
	ISBN        *string              `json:"isbn,omitempty"`
	Description *string              `json:"description,omitempty"`
	ReleaseDate *string              `json:"release_date,omitempty"`
	Authors     *[]author.Snapshot   `json:"authors,omitempty"`
	Categories  *[]category.Snapshot `json:"categories,omitempty"`
}

func (p UpdatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
		validation.Field(&p.ISBN, validation.Length(10, 17)),
		validation.Field(&p.ReleaseDate, validation.Date(DateLayout)),
		validation.Field(&p.Authors),
		validation.Field(&p.Categories),
	)
}

func (p UpdatePayload) Fields() map[string]any {
	fields := make(map[string]any, 6)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.ISBN != nil {
		fields["isbn"] = *p.ISBN
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.ReleaseDate != nil {
		fields["release_date"] = *p.ReleaseDate
	}
	if p.Authors != nil {
		fields["authors"] = DedupeAuthors(*p.Authors)
	}
	if p.Categories != nil {
		fields["categories"] = DedupeCategories(*p.Categories)
	}
	return fields
}

// CreateCopyPayload - value of a book_copy "create" event
type CreateCopyPayload struct {
	ID        int64              `json:"id"`
	BookID    int64              `json:"book_id"`
	PrintDate string             `json:"print_date"`
	Note      string             `json:"note,omitempty"`
	State     string             `json:"state"`
	Location  *location.Snapshot `json:"location,omitempty"`
}

func (p CreateCopyPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.BookID, validation.Required.Error("book_id is required"), validation.Min(int64(1))),
		validation.Field(&p.PrintDate, validation.Required.Error("print_date is required"), validation.Date(DateLayout)),
		validation.Field(&p.State, validation.Required, validation.In(StateGood, StateDamaged)),
		validation.Field(&p.Location),
	)
}

func (p CreateCopyPayload) ToBookCopy() BookCopy {
	return BookCopy(p)
}

// UpdateCopyPayload - value of a book_copy "update" event
type UpdateCopyPayload struct {
	ID        int64              `json:"id"`
	BookID    *int64             `json:"book_id,omitempty"`
	PrintDate *string            `json:"print_date,omitempty"`
	Note      *string            `json:"note,omitempty"`
	State     *string            `json:"state,omitempty"`
	Location  *location.Snapshot `json:"location,omitempty"`
}

func (p UpdateCopyPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.BookID, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&p.PrintDate, validation.NilOrNotEmpty, validation.Date(DateLayout)),
		validation.Field(&p.State, validation.NilOrNotEmpty, validation.In(StateGood, StateDamaged)),
		validation.Field(&p.Location),
	)
}

func (p UpdateCopyPayload) Fields() map[string]any {
	fields := make(map[string]any, 5)
	if p.BookID != nil {
		fields["book_id"] = *p.BookID
	}
	if p.PrintDate != nil {
		fields["print_date"] = *p.PrintDate
	}
	if p.Note != nil {
		fields["note"] = *p.Note
	}
	if p.State != nil {
		fields["state"] = *p.State
	}
	if p.Location != nil {
		fields["location"] = *p.Location
	}
	return fields
}
