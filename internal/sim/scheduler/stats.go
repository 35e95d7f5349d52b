package scheduler

import "sort"

// Sample is recorded each time a path is computed.
type Sample struct {
	Tick         uint64  `json:"tick"`
	PathLength   int     `json:"path_length"`
	TilesChecked int     `json:"tiles_checked"`
	CalcMs       float64 `json:"calc_ms"`
}

// Spread is the median and interquartile range of one metric.
type Spread struct {
	Median float64 `json:"median"`
	IQR    float64 `json:"iqr"`
}

type Summary struct {
	Ticks   uint64   `json:"ticks"`
	Steps   int      `json:"steps"`
	Samples []Sample `json:"samples"`

	PathLength   Spread `json:"path_length"`
	TilesChecked Spread `json:"tiles_checked"`
	CalcMs       Spread `json:"calc_ms"`
}

func summarize(ticks uint64, steps int, samples []Sample) *Summary {
	lengths := make([]float64, len(samples))
	checked := make([]float64, len(samples))
	calc := make([]float64, len(samples))
	for i, s := range samples {
		lengths[i] = float64(s.PathLength)
		checked[i] = float64(s.TilesChecked)
		calc[i] = s.CalcMs
	}
	return &Summary{
		Ticks:        ticks,
		Steps:        steps,
		Samples:      append([]Sample(nil), samples...),
		PathLength:   spread(lengths),
		TilesChecked: spread(checked),
		CalcMs:       spread(calc),
	}
}

// spread sorts v in place and reads the median and IQR by index:
// median = v[n/2], IQR = v[3n/4] - v[n/4]. Empty input yields zeros.
func spread(v []float64) Spread {
	n := len(v)
	if n == 0 {
		return Spread{}
	}
	sort.Float64s(v)
	return Spread{
		Median: v[n/2],
		IQR:    v[3*n/4] - v[n/4],
	}
}
