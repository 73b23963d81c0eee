package calculator

import (
	"errors"
	"math"

	"VolumeSentinel/internal/model"
)

// DefaultStdFloor keeps z-scores finite when the baseline volume is flat.
const DefaultStdFloor = 1e-6

// CalculateMean computes the arithmetic mean of values.
func CalculateMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values for mean")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// CalculateSampleStd computes the n-1 standard deviation around mean.
func CalculateSampleStd(values []float64, mean float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("not enough data for sample std")
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), nil
}

// RollingEngine computes trailing volume statistics over a fixed window.
type RollingEngine struct {
	Window   int
	StdFloor float64
}

// NewRollingEngine returns an engine; non-positive arguments fall back to 20 and DefaultStdFloor.
func NewRollingEngine(window int, stdFloor float64) RollingEngine {
	if window <= 0 {
		window = 20
	}
	if stdFloor <= 0 {
		stdFloor = DefaultStdFloor
	}
	return RollingEngine{Window: window, StdFloor: stdFloor}
}

// At returns the statistics of bars[i] against the Window bars strictly
// preceding it. ok is false when i < Window, i is out of range, or the
// baseline mean is zero or NaN.
func (e RollingEngine) At(bars []model.Bar, i int) (stats model.VolumeStats, ok bool) {
	if i < e.Window || i >= len(bars) || e.Window < 2 {
		return model.VolumeStats{}, false
	}
	window := extractVolumes(bars[i-e.Window : i])
	mean, err := CalculateMean(window)
	if err != nil || math.IsNaN(mean) || mean == 0 {
		return model.VolumeStats{}, false
	}
	std, err := CalculateSampleStd(window, mean)
	if err != nil {
		return model.VolumeStats{}, false
	}
	std = math.Max(std, e.StdFloor)

	v := float64(bars[i].Volume)
	return model.VolumeStats{
		Mean:   mean,
		Std:    std,
		ZScore: (v - mean) / std,
		Ratio:  v / mean,
	}, true
}

func extractVolumes(bars []model.Bar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = float64(b.Volume)
	}
	return vols
}
