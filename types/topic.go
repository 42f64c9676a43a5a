package types

// TopicMode distinguishes the main conversation thread from a temporary
// side-topic excursion.
type TopicMode string

const (
	TopicMain TopicMode = "main"
	TopicTemp TopicMode = "temp"
)

// TopicAction is the transition decided for one incoming query.
type TopicAction string

const (
	TopicStayMain    TopicAction = "stay-main"
	TopicEnterTemp   TopicAction = "enter-temp"
	TopicStayTemp    TopicAction = "stay-temp"
	TopicExitTemp    TopicAction = "exit-temp"
	TopicReplaceTemp TopicAction = "replace-temp"
)

// TopicState is the per-session topic machine state. TempReference is empty
// whenever Mode is TopicMain.
type TopicState struct {
	Mode          TopicMode `json:"mode"`
	MainReference string    `json:"main_reference"`
	TempReference string    `json:"temp_reference,omitempty"`
}

// NewTopicState returns the initial state for a session.
func NewTopicState(mainReference string) TopicState {
	return TopicState{Mode: TopicMain, MainReference: mainReference}
}

// TopicRelevance carries the per-query relevance of the query against the
// main and temp topic references. Transient, produced per query.
type TopicRelevance struct {
	Main float64 `json:"main"`
	Temp float64 `json:"temp"`
}
