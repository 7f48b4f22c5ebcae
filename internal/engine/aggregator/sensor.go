package aggregator

import "CuboTrack/internal/model"

const (
	calmBelowHz   = 80.0
	normalBelowHz = 150.0
)

// ClassifyFrequency maps a mean microphone frequency to a sensor state.
func ClassifyFrequency(mean float64) model.SensorState {
	switch {
	case mean < calmBelowHz:
		return model.SensorCalm
	case mean < normalBelowHz:
		return model.SensorNormal
	default:
		return model.SensorAgitated
	}
}

// SummarizeSensor computes per-field statistics over the samples in recs.
// Fields the device did not send, or sent as non-numeric values, are ignored
// for that field only.
func SummarizeSensor(recs []*model.Record) model.SensorSummary {
	var freqs, intensities []float64
	var last model.SensorSnapshot

	for _, r := range recs {
		if f := r.Sample.Freq; f != nil {
			v := *f
			freqs = append(freqs, v)
			last.Freq = &v
		}
		if i := r.Sample.Intensity; i != nil {
			v := *i
			intensities = append(intensities, v)
			last.Intensity = &v
		}
		if t := r.Sample.Type; t != nil {
			v := *t
			last.Type = &v
		}
	}

	out := model.SensorSummary{
		Count: len(freqs),
		Last:  last,
		State: model.SensorUninformed,
	}
	if len(freqs) > 0 {
		mean, lo, hi := stats(freqs)
		out.MeanFreq, out.MinFreq, out.MaxFreq = &mean, &lo, &hi
		out.State = ClassifyFrequency(mean)
	}
	if len(intensities) > 0 {
		mean, lo, hi := stats(intensities)
		out.MeanIntensity, out.MinIntensity, out.MaxIntensity = &mean, &lo, &hi
	}
	return out
}

func stats(values []float64) (mean, lo, hi float64) {
	lo, hi = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return sum / float64(len(values)), lo, hi
}
