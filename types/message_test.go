package types

import (
	"testing"
)

func TestMessage_TextConcatenatesTextBlocks(t *testing.T) {
	t.Parallel()

	m := Message{
		Role: RoleAssistant,
		Blocks: []ContentBlock{
			{Kind: BlockText, Text: "first"},
			{Kind: BlockToolUse, ToolName: "search", ToolUseID: "t1"},
			{Kind: BlockText, Text: "second"},
		},
	}

	if got, want := m.Text(), "first\nsecond"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
	if !m.HasToolUse() {
		t.Fatalf("expected HasToolUse")
	}
	if m.HasToolResult() {
		t.Fatalf("unexpected HasToolResult")
	}
}

func TestMessage_ToolResultNesting(t *testing.T) {
	t.Parallel()

	m := NewToolResultMessage("t1", "payload")
	if !m.HasToolResult() {
		t.Fatalf("expected HasToolResult")
	}
	// Tool payload text must not leak into Text().
	if got := m.Text(); got != "" {
		t.Fatalf("Text() = %q, want empty", got)
	}
	if len(m.Blocks) != 1 || len(m.Blocks[0].Blocks) != 1 {
		t.Fatalf("expected one tool_result block with one nested block")
	}
	if m.Blocks[0].Blocks[0].Text != "payload" {
		t.Fatalf("nested payload mismatch")
	}
}

func TestLayer_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		layer Layer
		want  string
	}{
		{LayerAbstract, "L0"},
		{LayerOverview, "L1"},
		{LayerTranscript, "L2"},
		{Layer(9), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.layer.String(); got != tc.want {
			t.Fatalf("Layer(%d).String() = %q, want %q", tc.layer, got, tc.want)
		}
	}
}

func TestContextNode_LayerText(t *testing.T) {
	t.Parallel()

	n := &ContextNode{Abstract: "a", Overview: "o", Transcript: "tr"}
	if n.LayerText(LayerAbstract) != "a" || n.LayerText(LayerOverview) != "o" || n.LayerText(LayerTranscript) != "tr" {
		t.Fatalf("LayerText mapping broken")
	}
}
