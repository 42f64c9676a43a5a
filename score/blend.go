package score

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Blend folds a dense and a sparse relevance signal into one score.
// alpha weights the sparse (lexical) side: 0 is dense-only, 1 is sparse-only.
func Blend(dense, sparse, alpha float64) float64 {
	alpha = Clamp01(alpha)
	return Clamp01((1-alpha)*Clamp01(dense) + alpha*Clamp01(sparse))
}
