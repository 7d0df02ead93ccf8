package features

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	data, err := NewSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "https://lacquer.ai/schemas/co2/input.json", schema["$id"])
	assert.Equal(t, "object", schema["type"])

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	require.Len(t, required, Width)
	for i, field := range RequiredFields {
		assert.Equal(t, field, required[i])
	}

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, Width)

	country := props[FieldCountry].(map[string]any)
	assert.Equal(t, "string", country["type"])
	assert.Len(t, country["enum"], 10)

	transport := props[FieldTransportMode].(map[string]any)
	assert.Contains(t, transport["enum"], "Train (intercités)")

	age := props[FieldAge].(map[string]any)
	assert.Nil(t, age["type"])
	assert.Nil(t, age["enum"])
	anyOf, ok := age["anyOf"].([]any)
	require.True(t, ok)
	require.Len(t, anyOf, 2)
	assert.Equal(t, "number", anyOf[0].(map[string]any)["type"])
	assert.Equal(t, "string", anyOf[1].(map[string]any)["type"])

	snaps.MatchSnapshot(t, string(data))
}

func TestNumericStringPattern(t *testing.T) {
	re := regexp.MustCompile(numericStringPattern)

	for _, valid := range []string{"35", " 35 ", "-1.5", "+2", ".5", "1237.", "1e3", "2.5E-2"} {
		assert.True(t, re.MatchString(valid), valid)
	}
	for _, invalid := range []string{"", "abc", "1,5", "NaN", "Inf", "1e", "--1", "."} {
		assert.False(t, re.MatchString(invalid), invalid)
	}
}
