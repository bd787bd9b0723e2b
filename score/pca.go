package score

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// firstComponent projects each row of the matrix onto the first principal
// component. rows is the number of observations, cols the number of
// variables; data is row-major. The caller canonicalizes the sign.
func firstComponent(data []float64, rows, cols int) ([]float64, error) {
	m := mat.NewDense(rows, cols, data)

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	means := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += m.At(i, j)
		}
		means[j] = sum / float64(rows)
	}

	projection := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var dot float64
		for j := 0; j < cols; j++ {
			dot += (m.At(i, j) - means[j]) * vectors.At(j, 0)
		}
		projection[i] = dot
	}
	return projection, nil
}

// canonicalizeSign flips the projection when it anti-correlates with the
// positivity rate, so the reduced score never swaps direction between
// runs.
func canonicalizeSign(projection, rates []float64) {
	var rateMean, projMean float64
	for i := range rates {
		rateMean += rates[i]
		projMean += projection[i]
	}
	rateMean /= float64(len(rates))
	projMean /= float64(len(projection))

	var cov float64
	for i := range rates {
		cov += (rates[i] - rateMean) * (projection[i] - projMean)
	}
	if cov < 0 {
		for i := range projection {
			projection[i] = -projection[i]
		}
	}
}
