package engine

import (
	"encoding/json"
	"math"
)

// Value is a float64 that may be undefined. Indicator series carry one
// Value per bar so that warmup bars keep their position instead of being
// filled with sentinel numbers. Undefined values marshal to JSON null.
type Value struct {
	Float64 float64
	Valid   bool
}

// Defined wraps a concrete float64 in a valid Value
func Defined(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Undefined returns the zero Value
func Undefined() Value {
	return Value{}
}

// Or returns the wrapped value when defined, otherwise the fallback
func (v Value) Or(fallback float64) float64 {
	if v.Valid {
		return v.Float64
	}
	return fallback
}

// MarshalJSON encodes undefined values as null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON decodes null as an undefined value
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	if err := json.Unmarshal(data, &v.Float64); err != nil {
		return err
	}
	v.Valid = true
	return nil
}
