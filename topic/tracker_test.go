package topic

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// --- mocks ---

type fixedScorer struct {
	rel   types.TopicRelevance
	err   error
	calls int
}

func (s *fixedScorer) Relevance(ctx context.Context, query string, state types.TopicState) (types.TopicRelevance, error) {
	s.calls++
	return s.rel, s.err
}

func newTestTracker(s Scorer) *Tracker {
	return NewTracker(config.DefaultTopicConfig(), s, zap.NewNop())
}

func mainState() types.TopicState {
	return types.TopicState{Mode: types.TopicMain, MainReference: "main topic"}
}

func tempState() types.TopicState {
	return types.TopicState{Mode: types.TopicTemp, MainReference: "main topic", TempReference: "side topic"}
}

// --- empty query short-circuit ---

func TestTracker_EmptyQuerySkipsScorer(t *testing.T) {
	t.Parallel()

	s := &fixedScorer{}
	tr := newTestTracker(s)

	action, _ := tr.Evaluate(context.Background(), "", mainState())
	assert.Equal(t, types.TopicStayMain, action)

	action, _ = tr.Evaluate(context.Background(), "", tempState())
	assert.Equal(t, types.TopicStayTemp, action)

	assert.Zero(t, s.calls, "scorer must not be invoked for empty queries")
}

// --- threshold scenarios ---

func TestTracker_Decisions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state types.TopicState
		rel   types.TopicRelevance
		want  types.TopicAction
	}{
		{"main, low relMain enters temp", mainState(), types.TopicRelevance{Main: 0.2, Temp: 0}, types.TopicEnterTemp},
		{"main, high relMain stays", mainState(), types.TopicRelevance{Main: 0.8}, types.TopicStayMain},
		{"temp, high relMain low relTemp exits", tempState(), types.TopicRelevance{Main: 0.75, Temp: 0.3}, types.TopicExitTemp},
		{"temp, both low replaces", tempState(), types.TopicRelevance{Main: 0.2, Temp: 0.3}, types.TopicReplaceTemp},
		{"temp, high relTemp dominates", tempState(), types.TopicRelevance{Main: 0.3, Temp: 0.9}, types.TopicStayTemp},
		{"temp, ambiguous middle stays", tempState(), types.TopicRelevance{Main: 0.45, Temp: 0.2}, types.TopicStayTemp},
		{"temp, relTemp at threshold stays even with high relMain", tempState(), types.TopicRelevance{Main: 0.9, Temp: 0.5}, types.TopicStayTemp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(&fixedScorer{rel: tt.rel})
			action, rel := tr.Evaluate(context.Background(), "some query", tt.state)
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.rel, rel)
		})
	}
}

func TestTracker_ScorerErrorStaysConservative(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(&fixedScorer{err: errors.New("provider down")})

	action, _ := tr.Evaluate(context.Background(), "query", mainState())
	assert.Equal(t, types.TopicStayMain, action)

	action, _ = tr.Evaluate(context.Background(), "query", tempState())
	assert.Equal(t, types.TopicStayTemp, action)
}

// --- Apply ---

func TestApply_Transitions(t *testing.T) {
	t.Parallel()

	st := mainState()

	st = Apply(st, types.TopicEnterTemp, "new side topic")
	assert.Equal(t, types.TopicTemp, st.Mode)
	assert.Equal(t, "new side topic", st.TempReference)
	assert.Equal(t, "main topic", st.MainReference)

	st = Apply(st, types.TopicReplaceTemp, "another side topic")
	assert.Equal(t, types.TopicTemp, st.Mode)
	assert.Equal(t, "another side topic", st.TempReference)

	st = Apply(st, types.TopicExitTemp, "back to business")
	assert.Equal(t, types.TopicMain, st.Mode)
	assert.Empty(t, st.TempReference)
}

func TestActiveReference(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "main topic", ActiveReference(mainState()))
	assert.Equal(t, "side topic", ActiveReference(tempState()))

	// TEMP mode with an empty temp reference falls back to main.
	st := tempState()
	st.TempReference = ""
	assert.Equal(t, "main topic", ActiveReference(st))
}

// --- properties ---

func TestProperty_DecisionInvariants(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultTopicConfig()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("high relTemp always stays temp", prop.ForAll(
		func(relMain, relTemp float64) bool {
			if relTemp < cfg.TempStayThreshold {
				return true
			}
			tr := newTestTracker(&fixedScorer{rel: types.TopicRelevance{Main: relMain, Temp: relTemp}})
			action, _ := tr.Evaluate(context.Background(), "q", tempState())
			return action == types.TopicStayTemp
		},
		gen.Float64Range(0, 1), gen.Float64Range(0, 1),
	))

	properties.Property("MAIN mode never yields a temp-only action", prop.ForAll(
		func(relMain, relTemp float64) bool {
			tr := newTestTracker(&fixedScorer{rel: types.TopicRelevance{Main: relMain, Temp: relTemp}})
			action, _ := tr.Evaluate(context.Background(), "q", mainState())
			return action == types.TopicStayMain || action == types.TopicEnterTemp
		},
		gen.Float64Range(0, 1), gen.Float64Range(0, 1),
	))

	properties.Property("apply keeps main reference untouched", prop.ForAll(
		func(relMain, relTemp float64) bool {
			tr := newTestTracker(&fixedScorer{rel: types.TopicRelevance{Main: relMain, Temp: relTemp}})
			st := tempState()
			action, _ := tr.Evaluate(context.Background(), "q", st)
			next := Apply(st, action, "q")
			return next.MainReference == st.MainReference
		},
		gen.Float64Range(0, 1), gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
