package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	evt, err := parseEvent([]byte(`{"topic":"author","key":"update","value":{"id":1,"name":"X"}}`))
	require.NoError(t, err)
	assert.Equal(t, "author", evt.Topic)
	assert.Equal(t, "update", evt.Key)
	assert.JSONEq(t, `{"id":1,"name":"X"}`, string(evt.Value))
}

func TestParseEvent_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json": `{`,
		"no topic": `{"key":"create","value":{}}`,
		"no key":   `{"topic":"book","value":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseEvent([]byte(raw))
			assert.Error(t, err)
		})
	}
}
