package features

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/stoewer/go-strcase"
)

const schemaBaseURL = "https://lacquer.ai/schemas/co2/"

// numericStringPattern matches the strings strconv.ParseFloat accepts for a
// finite decimal value, with surrounding blanks.
const numericStringPattern = `^\s*[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?\s*$`

// NewSchema returns the JSON schema of a prediction request, with the
// accepted values of every categorical field listed as an enum.
func NewSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	schema := r.Reflect(&Input{})
	schema.ID = jsonschema.ID(schemaBaseURL + strcase.KebabCase(reflect.TypeOf(Input{}).Name()) + ".json")
	schema.Title = "CO2 prediction input"
	schema.Description = "Lifestyle description used to estimate weekly CO2 emissions in kilograms."

	for _, field := range RequiredFields {
		if _, categorical := tables[field]; categorical {
			continue
		}
		prop, ok := schema.Properties.Get(field)
		if !ok {
			continue
		}
		// numeric fields also accept their decimal string form, e.g. "35"
		prop.Type = ""
		prop.AnyOf = []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string", Pattern: numericStringPattern},
		}
	}

	for field, names := range tables {
		prop, ok := schema.Properties.Get(field)
		if !ok {
			continue
		}
		prop.Enum = make([]any, len(names))
		for i, name := range names {
			prop.Enum[i] = name
		}
	}

	return json.MarshalIndent(schema, "", "  ")
}
