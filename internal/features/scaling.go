package features

// NormalizationParams is a fixed per-column affine transform.
type NormalizationParams struct {
	Min   Vector
	Scale Vector
}

// DenormalizationParams maps a model score back to kilograms of CO2.
type DenormalizationParams struct {
	Min float64
	Max float64
}

// DefaultNormalization holds the scaling the model was trained with. Each
// scale is the reciprocal of the column's assumed range.
var DefaultNormalization = NormalizationParams{
	Scale: Vector{
		1.0 / 1,
		1.0 / 100,
		1.0 / 70,
		1.0 / 3000,
		1.0 / 10,
		1.0 / 20000,
		1.0 / 6,
		1.0 / 500,
	},
}

// DefaultDenormalization holds the weekly kg CO2 target bounds.
//
// These bounds are constants rather than statistics of the training target,
// so predictions are only as calibrated as this guess.
var DefaultDenormalization = DenormalizationParams{Min: 0, Max: 100}

// Normalize applies (v[i] - Min[i]) * Scale[i] to every column. Values are
// not clipped.
func Normalize(v Vector, p NormalizationParams) Vector {
	var out Vector
	for i := range v {
		out[i] = (v[i] - p.Min[i]) * p.Scale[i]
	}
	return out
}

// Denormalize maps a model score back to real-world units.
func Denormalize(score float64, p DenormalizationParams) float64 {
	return score*(p.Max-p.Min) + p.Min
}
