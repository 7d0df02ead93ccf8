package features

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Sex is the encoded value of the "Sex" input.
type Sex int

const (
	Female Sex = iota
	Male
)

var sexNames = [...]string{
	Female: "Female",
	Male:   "Male",
}

// Country is the encoded value of the "Pays" input. Codes follow the
// declaration order the model was trained with.
type Country int

const (
	France Country = iota
	Germany
	SouthAfrica
	Brazil
	Canada
	India
	UnitedKingdom
	Australia
	UnitedStates
	China
)

var countryNames = [...]string{
	France:        "France",
	Germany:       "Germany",
	SouthAfrica:   "South Africa",
	Brazil:        "Brazil",
	Canada:        "Canada",
	India:         "India",
	UnitedKingdom: "United Kingdom",
	Australia:     "Australia",
	UnitedStates:  "United States",
	China:         "China",
}

// TransportMode is the encoded value of the "Moyen_de_transport" input.
type TransportMode int

const (
	Bus TransportMode = iota
	CarDiesel
	IntercityTrain
	Motorbike
	Metro
	DieselTrain
	ElectricTrain
	Tramway
	ElectricCar
	TGV
	PetrolCar
)

var transportModeNames = [...]string{
	Bus:            "Bus",
	CarDiesel:      "Voiture (diesel)",
	IntercityTrain: "Train (intercités)",
	Motorbike:      "Moto",
	Metro:          "Métro",
	DieselTrain:    "Train (diesel)",
	ElectricTrain:  "Train (électrique)",
	Tramway:        "Tramway",
	ElectricCar:    "Voiture (électrique)",
	TGV:            "TGV",
	PetrolCar:      "Voiture (essence)",
}

// EnergyClass is the encoded value of the "Classe_énergétique" input.
type EnergyClass int

const (
	ClassA EnergyClass = iota
	ClassB
	ClassC
	ClassD
	ClassE
	ClassF
	ClassG
)

var energyClassNames = [...]string{
	ClassA: "A",
	ClassB: "B",
	ClassC: "C",
	ClassD: "D",
	ClassE: "E",
	ClassF: "F",
	ClassG: "G",
}

func (s Sex) String() string           { return nameOf(sexNames[:], int(s)) }
func (c Country) String() string       { return nameOf(countryNames[:], int(c)) }
func (m TransportMode) String() string { return nameOf(transportModeNames[:], int(m)) }
func (e EnergyClass) String() string   { return nameOf(energyClassNames[:], int(e)) }

func nameOf(names []string, code int) string {
	if code < 0 || code >= len(names) {
		return fmt.Sprintf("invalid(%d)", code)
	}
	return names[code]
}

// ParseSex encodes a "Sex" value.
func ParseSex(value string) (Sex, error) {
	code, err := lookup(FieldSex, sexNames[:], value)
	return Sex(code), err
}

// ParseCountry encodes a "Pays" value.
func ParseCountry(value string) (Country, error) {
	code, err := lookup(FieldCountry, countryNames[:], value)
	return Country(code), err
}

// ParseTransportMode encodes a "Moyen_de_transport" value.
func ParseTransportMode(value string) (TransportMode, error) {
	code, err := lookup(FieldTransportMode, transportModeNames[:], value)
	return TransportMode(code), err
}

// ParseEnergyClass encodes a "Classe_énergétique" value.
func ParseEnergyClass(value string) (EnergyClass, error) {
	code, err := lookup(FieldEnergyClass, energyClassNames[:], value)
	return EnergyClass(code), err
}

// Encode returns the integer code of value in the table of the given
// categorical field.
func Encode(field, value string) (int, error) {
	names, ok := tables[field]
	if !ok {
		return 0, fmt.Errorf("field %q is not categorical", field)
	}
	return lookup(field, names, value)
}

// Categories returns the accepted values of a categorical field in code
// order, or nil if the field is not categorical.
func Categories(field string) []string {
	names, ok := tables[field]
	if !ok {
		return nil
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

var tables = map[string][]string{
	FieldSex:           sexNames[:],
	FieldCountry:       countryNames[:],
	FieldTransportMode: transportModeNames[:],
	FieldEnergyClass:   energyClassNames[:],
}

// lookup compares in NFC so that decomposed accents from some clients still
// match "Métro" or "Train (électrique)".
func lookup(field string, names []string, value string) (int, error) {
	normalized := norm.NFC.String(value)
	for code, name := range names {
		if name == normalized {
			return code, nil
		}
	}
	return 0, &UnknownCategoryError{Field: field, Value: value}
}
