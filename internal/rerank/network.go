package rerank

import (
	"fmt"
	"math"
)

const (
	featureCount = 8
	hiddenSize   = 6
)

// network is the fixed 8x6x1 feed-forward head: dense, ReLU, dense,
// sigmoid over output/3.2.
type network struct {
	w networkWeights
}

// newNetwork validates the weight shapes before anything can score
// with them. A malformed table is a build defect, not a runtime
// condition to limp through.
func newNetwork(w networkWeights) (*network, error) {
	if len(w.hidden) != featureCount {
		return nil, fmt.Errorf("rerank: hidden weights have %d rows, want %d", len(w.hidden), featureCount)
	}
	for i, row := range w.hidden {
		if len(row) != hiddenSize {
			return nil, fmt.Errorf("rerank: hidden weight row %d has %d columns, want %d", i, len(row), hiddenSize)
		}
	}
	if len(w.hiddenBias) != hiddenSize {
		return nil, fmt.Errorf("rerank: hidden bias has %d entries, want %d", len(w.hiddenBias), hiddenSize)
	}
	if len(w.output) != hiddenSize {
		return nil, fmt.Errorf("rerank: output weights have %d entries, want %d", len(w.output), hiddenSize)
	}
	return &network{w: w}, nil
}

func (n *network) score(features [featureCount]float64) float64 {
	var hidden [hiddenSize]float64
	for j := 0; j < hiddenSize; j++ {
		sum := n.w.hiddenBias[j]
		for i := 0; i < featureCount; i++ {
			sum += features[i] * n.w.hidden[i][j]
		}
		if sum > 0 {
			hidden[j] = sum
		}
	}
	out := n.w.outputBias
	for j := 0; j < hiddenSize; j++ {
		out += hidden[j] * n.w.output[j]
	}
	return sigmoid(out / 3.2)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
