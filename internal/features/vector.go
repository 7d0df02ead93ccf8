package features

// Width is the number of model features.
const Width = 8

// Vector is a feature vector in model column order:
// sex, age, country, kWh, transport, km, energy class, surface.
type Vector [Width]float64

// Slice returns a copy of v as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Width)
	copy(out, v[:])
	return out
}

// Vectorize encodes a payload into a feature vector. Fields are checked in
// column order and the first invalid one is reported.
func Vectorize(in RawInput) (Vector, error) {
	var v Vector

	s, err := categorical(in, FieldSex)
	if err != nil {
		return v, err
	}
	sex, err := ParseSex(s)
	if err != nil {
		return v, err
	}

	age, err := numeric(in, FieldAge)
	if err != nil {
		return v, err
	}

	if s, err = categorical(in, FieldCountry); err != nil {
		return v, err
	}
	country, err := ParseCountry(s)
	if err != nil {
		return v, err
	}

	kwh, err := numeric(in, FieldEnergyConsumption)
	if err != nil {
		return v, err
	}

	if s, err = categorical(in, FieldTransportMode); err != nil {
		return v, err
	}
	transport, err := ParseTransportMode(s)
	if err != nil {
		return v, err
	}

	km, err := numeric(in, FieldDistance)
	if err != nil {
		return v, err
	}

	if s, err = categorical(in, FieldEnergyClass); err != nil {
		return v, err
	}
	class, err := ParseEnergyClass(s)
	if err != nil {
		return v, err
	}

	surface, err := numeric(in, FieldHouseSurface)
	if err != nil {
		return v, err
	}

	v = Vector{
		float64(sex),
		age,
		float64(country),
		kwh,
		float64(transport),
		km,
		float64(class),
		surface,
	}
	return v, nil
}
