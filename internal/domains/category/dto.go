package category

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 2000
)

// CreatePayload - value of a category "create" event
type CreatePayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (p CreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.Required.Error("name is required"), validation.Length(1, MaxNameLength)),
		validation.Field(&p.Description, validation.Length(0, MaxDescriptionLength)),
	)
}

func (p CreatePayload) ToCategory() Category {
	return Category{ID: p.ID, Name: p.Name, Description: p.Description}
}

// UpdatePayload - value of a category "update" event
type UpdatePayload struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p UpdatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.NilOrNotEmpty.Error("name cannot be blank"), validation.Length(1, MaxNameLength)),
		validation.Field(&p.Description, validation.Length(0, MaxDescriptionLength)),
	)
}

func (p UpdatePayload) Fields() map[string]any {
	fields := make(map[string]any, 2)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	return fields
}

func (s Snapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required.Error("category id is required"), validation.Min(int64(1))),
	)
}
