package types

// Selection is one node chosen by the retriever at a given layer.
type Selection struct {
	Layer  Layer   `json:"layer"`
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
}

// RetrievalResult is the outcome of one layered retrieval: the layer the
// escalation procedure stopped at, the selected nodes in rank order, the
// concatenated layer text ready for prompt assembly, and its estimated cost.
type RetrievalResult struct {
	ReachedLayer Layer       `json:"reached_layer"`
	Selections   []Selection `json:"selections"`
	Text         string      `json:"text"`
	TokensUsed   int         `json:"tokens_used"`
}

// Empty reports whether nothing was selected.
func (r *RetrievalResult) Empty() bool {
	return len(r.Selections) == 0
}
