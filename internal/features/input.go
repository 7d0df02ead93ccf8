package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire names of the request fields.
const (
	FieldSex               = "Sex"
	FieldAge               = "Âge"
	FieldCountry           = "Pays"
	FieldEnergyConsumption = "Consommation_KWh"
	FieldTransportMode     = "Moyen_de_transport"
	FieldDistance          = "Nombre_de_KM"
	FieldEnergyClass       = "Classe_énergétique"
	FieldHouseSurface      = "Surface_maison_M2"
)

// RequiredFields holds every input key in feature column order.
var RequiredFields = [Width]string{
	FieldSex,
	FieldAge,
	FieldCountry,
	FieldEnergyConsumption,
	FieldTransportMode,
	FieldDistance,
	FieldEnergyClass,
	FieldHouseSurface,
}

// RawInput is a decoded request payload keyed by wire name. Values are kept
// as decoded so that validation can report exactly what the client sent.
type RawInput map[string]any

// Missing returns the required fields absent from the payload, in column order.
func (in RawInput) Missing() []string {
	var missing []string
	for _, field := range RequiredFields {
		if _, ok := in[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// CheckRequired returns a *MissingFieldError if any required field is absent.
func (in RawInput) CheckRequired() error {
	missing := in.Missing()
	if len(missing) == 0 {
		return nil
	}
	return &MissingFieldError{
		Missing:  missing,
		Required: RequiredFields[:],
	}
}

// Input is the typed form of a request payload. It documents the wire
// contract and is used for the published example and JSON schema.
type Input struct {
	Sex               string  `json:"Sex" yaml:"Sex" jsonschema:"title=Sex"`
	Age               float64 `json:"Âge" yaml:"Âge" jsonschema:"title=Age,description=Age in years"`
	Country           string  `json:"Pays" yaml:"Pays" jsonschema:"title=Country"`
	EnergyConsumption float64 `json:"Consommation_KWh" yaml:"Consommation_KWh" jsonschema:"title=Energy consumption,description=Household electricity consumption in kWh"`
	TransportMode     string  `json:"Moyen_de_transport" yaml:"Moyen_de_transport" jsonschema:"title=Transport mode"`
	Distance          float64 `json:"Nombre_de_KM" yaml:"Nombre_de_KM" jsonschema:"title=Distance,description=Distance travelled in km"`
	EnergyClass       string  `json:"Classe_énergétique" yaml:"Classe_énergétique" jsonschema:"title=Energy class"`
	HouseSurface      float64 `json:"Surface_maison_M2" yaml:"Surface_maison_M2" jsonschema:"title=House surface,description=House surface in square meters"`
}

// Raw converts a typed input to its wire form.
func (i Input) Raw() RawInput {
	return RawInput{
		FieldSex:               i.Sex,
		FieldAge:               i.Age,
		FieldCountry:           i.Country,
		FieldEnergyConsumption: i.EnergyConsumption,
		FieldTransportMode:     i.TransportMode,
		FieldDistance:          i.Distance,
		FieldEnergyClass:       i.EnergyClass,
		FieldHouseSurface:      i.HouseSurface,
	}
}

// ExampleInput is the reference payload published on the home document.
var ExampleInput = Input{
	Sex:               Male.String(),
	Age:               35,
	Country:           France.String(),
	EnergyConsumption: 1237,
	TransportMode:     CarDiesel.String(),
	Distance:          1648,
	EnergyClass:       ClassC.String(),
	HouseSurface:      150,
}

func categorical(in RawInput, field string) (string, error) {
	s, ok := in[field].(string)
	if !ok {
		return "", &UnknownCategoryError{Field: field, Value: in[field]}
	}
	return s, nil
}

// numeric accepts the number types produced by the JSON and YAML decoders
// and numeric strings.
func numeric(in RawInput, field string) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v := in[field].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &InvalidNumericError{Field: field, Value: in[field]}
	}
	return f, nil
}
