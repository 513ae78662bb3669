package calibration

import "github.com/montanaflynn/stats"

// PhaseStats summarizes the values recorded in one phase.
type PhaseStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// StdDev is the sample standard deviation; only set when Count >= 2.
	StdDev    float64 `json:"stdev"`
	HasStdDev bool    `json:"has_stdev"`
	Range     float64 `json:"range"`
}

// ComputeStats returns the summary of values. An empty slice yields a zero
// summary with Count 0.
func ComputeStats(values []float64) PhaseStats {
	if len(values) == 0 {
		return PhaseStats{}
	}
	data := stats.Float64Data(values)

	// errors are only returned for empty input
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	median, _ := data.Median()

	ps := PhaseStats{
		Count:  len(values),
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median,
		Range:  hi - lo,
	}
	if len(values) >= 2 {
		if sd, err := stats.StandardDeviationSample(data); err == nil {
			ps.StdDev = sd
			ps.HasStdDev = true
		}
	}
	return ps
}
