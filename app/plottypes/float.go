// Package plottypes reshapes resolved plot responses for specific plot
// types: waterfalls, per-group regression tables and correlation heatmaps.
package plottypes

import (
	"math"
	"strconv"
)

// Float is a statistic that encodes NaN and infinities as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	x := float64(f)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	x, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(x)
	return nil
}
