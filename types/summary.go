package types

// SummaryLevel selects the compression level requested from a summary provider.
type SummaryLevel string

const (
	// SummaryOverview requests a multi-line overview of a full segment.
	SummaryOverview SummaryLevel = "overview"
	// SummaryAbstract requests a one-two sentence abstract.
	SummaryAbstract SummaryLevel = "abstract"
)

// SummaryResult is the outcome of one summary generation, including whether
// the deterministic fallback produced the text and why.
type SummaryResult struct {
	Text           string `json:"text"`
	FallbackUsed   bool   `json:"fallback_used"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}
