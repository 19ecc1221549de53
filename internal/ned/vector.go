// Package ned provides the North/East/Down vector type shared by the
// catalog, survey, and fix packages. All components are meters.
package ned

import "math"

type Vector struct {
	N float64 `json:"n"`
	E float64 `json:"e"`
	D float64 `json:"d"`
}

func (v Vector) Add(o Vector) Vector {
	return Vector{N: v.N + o.N, E: v.E + o.E, D: v.D + o.D}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{N: v.N - o.N, E: v.E - o.E, D: v.D - o.D}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{N: v.N * f, E: v.E * f, D: v.D * f}
}

// Round returns the vector with each component rounded to the given number
// of decimal places. Used by the dashboard encoders, which emit fixed
// precision rather than raw float64 noise.
func (v Vector) Round(decimals int) Vector {
	return Vector{
		N: Round(v.N, decimals),
		E: Round(v.E, decimals),
		D: Round(v.D, decimals),
	}
}

func Round(x float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(x*p) / p
}
