package rerank

// The neural head's weights are hand-set constants, not learned
// parameters. Each hidden unit reads an interpretable slice of the
// feature vector: h0 preference alignment (embedding, language,
// artist), h1 text rank and query intent, h2 popularity and
// interaction history, h3 skip risk (wired negative on output), h4
// artist-language agreement, h5 embedding alone. The output bias keeps
// a feature-neutral song well below the sigmoid midpoint so only
// preference-aligned candidates score high.

// Feature order: textRank, embedding, language, artist, popularity,
// interaction, skipRisk, queryIntent.

type networkWeights struct {
	hidden     [][]float64
	hiddenBias []float64
	output     []float64
	outputBias float64
}

func defaultWeights() networkWeights {
	return networkWeights{
		hidden: [][]float64{
			{0.0, 1.6, 0.0, 0.0, 0.0, 0.0},
			{3.2, 0.0, 0.0, 0.0, 0.0, 3.6},
			{5.0, 0.0, 0.0, 0.0, 2.8, 0.0},
			{5.2, 0.0, 0.0, 0.0, 3.2, 0.0},
			{0.0, 0.0, 1.4, 0.0, 0.0, 0.0},
			{0.0, 0.0, 1.8, 0.0, 0.0, 0.0},
			{0.0, 0.0, 0.0, 2.5, 0.0, 0.0},
			{0.0, 1.2, 0.0, 0.0, 0.0, 0.0},
		},
		hiddenBias: []float64{-2.2, -0.4, -0.5, -0.3, -1.1, -0.9},
		output:     []float64{1.15, 0.55, 0.6, -1.3, 0.95, 0.8},
		outputBias: -6.0,
	}
}
