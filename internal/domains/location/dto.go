package location

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MaxNameLength    = 100
	MaxAddressLength = 500
)

// CreatePayload - value of a location "create" event
type CreatePayload struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (p CreatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.Required.Error("name is required"), validation.Length(1, MaxNameLength)),
		validation.Field(&p.Address, validation.Required.Error("address is required"), validation.Length(1, MaxAddressLength)),
	)
}

func (p CreatePayload) ToLocation() Location {
	return Location(p)
}

// UpdatePayload - value of a location "update" event
type UpdatePayload struct {
	ID      int64   `json:"id"`
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

func (p UpdatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required.Error("id is required"), validation.Min(int64(1))),
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
		validation.Field(&p.Address, validation.NilOrNotEmpty, validation.Length(1, MaxAddressLength)),
	)
}

func (p UpdatePayload) Fields() map[string]any {
	fields := make(map[string]any, 2)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Address != nil {
		fields["address"] = *p.Address
	}
	return fields
}

func (s Snapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required.Error("location id is required"), validation.Min(int64(1))),
		validation.Field(&s.Name, validation.Required),
	)
}
