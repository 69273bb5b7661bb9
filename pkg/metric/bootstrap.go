package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic-mean measure for Bootstrap
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// BootstrapInterval is a confidence interval estimated by resampling
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates a confidence interval for the given measure by
// resampling values with replacement. samples controls how many bootstrap
// draws are taken; confidence is the interval mass, e.g. 0.95.
func Bootstrap(values []float64, measure func([]float64) float64, samples int, confidence float64) BootstrapInterval {
	if len(values) == 0 {
		return BootstrapInterval{}
	}

	draws := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		resampled := make([]float64, len(values))
		for j := range resampled {
			resampled[j] = lo.Sample(values)
		}
		draws = append(draws, measure(resampled))
	}

	sort.Float64s(draws)

	tail := 1 - confidence
	mean, stdDev := stat.MeanStdDev(draws, nil)

	return BootstrapInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, draws, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, draws, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}
