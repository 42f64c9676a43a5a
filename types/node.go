package types

import "time"

// Layer identifies one of the three detail layers of a ContextNode.
type Layer int

const (
	// LayerAbstract (L0) is the one-two sentence abstract.
	LayerAbstract Layer = iota
	// LayerOverview (L1) is the bulleted overview.
	LayerOverview
	// LayerTranscript (L2) is the raw segment text.
	LayerTranscript
)

// String returns the compact layer name.
func (l Layer) String() string {
	switch l {
	case LayerAbstract:
		return "L0"
	case LayerOverview:
		return "L1"
	case LayerTranscript:
		return "L2"
	default:
		return "unknown"
	}
}

// ContextNode is one indexed conversation segment at three levels of detail.
// Nodes are immutable once created; newer segments supersede, never edit.
type ContextNode struct {
	ID          string    `json:"id"`
	SessionKey  string    `json:"session_key"`
	Abstract    string    `json:"abstract"`
	Overview    string    `json:"overview"`
	Transcript  string    `json:"transcript"`
	Keywords    []string  `json:"keywords,omitempty"`
	RecencyRank int64     `json:"recency_rank"`
	CreatedAt   time.Time `json:"created_at"`
}

// LayerText returns the node text at the given layer.
func (n *ContextNode) LayerText(l Layer) string {
	switch l {
	case LayerAbstract:
		return n.Abstract
	case LayerOverview:
		return n.Overview
	default:
		return n.Transcript
	}
}
