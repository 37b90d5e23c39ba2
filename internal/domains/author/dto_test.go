package author

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthor_SnapshotDropsExcludedFields(t *testing.T) {
	a := Author{ID: 1, Name: "Y", Description: "bio", Books: []BookRef{{ID: 3, Name: "1984"}}}

	assert.Equal(t, Snapshot{ID: 1, Name: "Y"}, a.Snapshot())
}

func TestUpdatePayload_Fields(t *testing.T) {
	name := "Y"
	desc := ""
	p := UpdatePayload{ID: 1, Name: &name, Description: &desc}

	assert.NoError(t, p.Validate())
	assert.Equal(t, map[string]any{"name": "Y", "description": ""}, p.Fields())
}

func TestUpdatePayload_Validate(t *testing.T) {
	blank := ""

	assert.Error(t, UpdatePayload{}.Validate(), "id is required")
	assert.Error(t, UpdatePayload{ID: -4}.Validate())
	assert.Error(t, UpdatePayload{ID: 1, Name: &blank}.Validate())
	assert.NoError(t, UpdatePayload{ID: 1}.Validate())
}

func TestCreatePayload_Validate(t *testing.T) {
	assert.NoError(t, CreatePayload{ID: 1, Name: "X"}.Validate())
	assert.Error(t, CreatePayload{ID: 1}.Validate())
	assert.Error(t, CreatePayload{ID: 1, Name: "X", Books: []BookRef{{Name: "no id"}}}.Validate())
}
