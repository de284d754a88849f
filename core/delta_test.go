package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaApplyAppendsAndMerges(t *testing.T) {
	s := NewWorkflowState("", "conversation", map[string]any{"message": "show 1ABC"})
	s.Context["a"] = 1

	d := &Delta{
		CurrentAgent: AgentIDSearch,
		Messages:     []Message{NewMessage("assistant", "Found 1ABC")},
		Context:      map[string]any{"b": 2},
		SearchResults: map[string]any{
			AgentIDSearch: map[string]any{"found": true},
			"latest":      "1ABC",
		},
		Handoffs: []Handoff{{From: AgentIDConversation, To: AgentIDSearch, Reason: "PDB structure request detected"}},
	}
	n := d.Apply(s)

	assert.Equal(t, AgentIDSearch, n.CurrentAgent)
	assert.Len(t, n.Messages, 2)
	assert.Equal(t, 1, n.Context["a"])
	assert.Equal(t, 2, n.Context["b"])
	assert.Equal(t, "1ABC", n.SearchResults["latest"])
	require.Len(t, n.AgentHandoffs, 1)

	// input state untouched
	assert.Len(t, s.Messages, 1)
	assert.Empty(t, s.AgentHandoffs)
	assert.Empty(t, s.CurrentAgent)
}

func TestDeltaApplyErrorStateIsSticky(t *testing.T) {
	s := NewWorkflowState("", "analysis", nil)

	n := (&Delta{ErrorState: "no structure data available"}).Apply(s)
	assert.Equal(t, "no structure data available", n.ErrorState)

	n2 := (&Delta{ErrorState: "something else"}).Apply(n)
	assert.Equal(t, "no structure data available", n2.ErrorState)
}

func TestDeltaApplyCompletedAtIsIdempotent(t *testing.T) {
	s := NewWorkflowState("", "conversation", nil)

	first := time.Now()
	n := (&Delta{CompletedAt: &first}).Apply(s)
	require.True(t, n.Completed())
	assert.Equal(t, first, n.CompletedAt)

	second := first.Add(time.Minute)
	n2 := (&Delta{CompletedAt: &second}).Apply(n)
	assert.Equal(t, first, n2.CompletedAt)
}

func TestDeltaApplyNextAgent(t *testing.T) {
	s := NewWorkflowState("", "conversation", nil)

	n := (&Delta{NextAgent: NextAgentTo(AgentIDAnalysis)}).Apply(s)
	assert.Equal(t, AgentIDAnalysis, n.NextAgent)

	// nil pointer leaves the field alone
	n2 := (&Delta{CurrentAgent: AgentIDAnalysis}).Apply(n)
	assert.Equal(t, AgentIDAnalysis, n2.NextAgent)

	// pointer to "" clears it
	n3 := (&Delta{NextAgent: NextAgentTo("")}).Apply(n2)
	assert.Empty(t, n3.NextAgent)
}
