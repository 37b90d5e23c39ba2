package author

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Constants for validation
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 5000
)

// CreatePayload - value of an author "create" event
type CreatePayload struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Books       []BookRef `json:"books,omitempty"`
}

func (p CreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name,
			validation.Required.Error("name is required"),
			validation.Length(1, MaxNameLength),
		),
		validation.Field(&p.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&p.Books),
	)
}

// ToAuthor builds the canonical document
func (p CreatePayload) ToAuthor() Author {
	return Author{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Books:       p.Books,
	}
}

// UpdatePayload - value of an author "update" event.
// Absent fields keep their stored value.
type UpdatePayload struct {
	ID          int64      `json:"id"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Books       *[]BookRef `json:"books,omitempty"`
}

func (p UpdatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.NilOrNotEmpty.Error("name cannot be blank"), validation.Length(1, MaxNameLength)),
		validation.Field(&p.Description, validation.Length(0, MaxDescriptionLength)),
	)
}

// Fields returns the top-level fields to merge into the canonical document
func (p UpdatePayload) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Books != nil {
		fields["books"] = *p.Books
	}
	return fields
}

func (r BookRef) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Min(int64(1))),
	)
}

func (s Snapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required.Error("author id is required"), validation.Min(int64(1))),
	)
}
