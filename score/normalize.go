package score

// minMax rescales a column to [0, 1] over the current unit set.
// Normalization parameters are recomputed on every run; a constant column
// normalizes to all zeros.
func minMax(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	scaled := make([]float64, len(values))
	if hi == lo {
		return scaled
	}
	for i, v := range values {
		scaled[i] = (v - lo) / (hi - lo)
	}
	return scaled
}
