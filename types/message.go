// Package types provides core types shared across contextflow.
// This package has ZERO dependencies on other contextflow packages to avoid circular imports.
// All other packages should import types from here.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind identifies the kind of a content block.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ImageContent represents image data for multimodal messages.
type ImageContent struct {
	Type string `json:"type"` // "url" or "base64"
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"` // base64 encoded
}

// ContentBlock is one unit of message content. Text and Image are set for
// their respective kinds; tool blocks carry the invocation metadata plus
// nested sub-blocks for their payload.
type ContentBlock struct {
	Kind      BlockKind       `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Image     *ImageContent   `json:"image,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	Blocks    []ContentBlock  `json:"blocks,omitempty"`
	// FileRef is set when a tool_result payload has been offloaded to a file;
	// the inline Text then holds only a short path reference.
	FileRef string `json:"file_ref,omitempty"`
}

// Message represents a conversation message as an ordered list of blocks.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      Role           `json:"role"`
	Blocks    []ContentBlock `json:"blocks"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// NewMessage creates a message with a single text block.
func NewMessage(role Role, text string) Message {
	return Message{
		Role:      role,
		Blocks:    []ContentBlock{{Kind: BlockText, Text: text}},
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(text string) Message {
	return NewMessage(RoleSystem, text)
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, text)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(text string) Message {
	return NewMessage(RoleAssistant, text)
}

// NewToolUseMessage creates an assistant message carrying one tool invocation.
func NewToolUseMessage(toolUseID, toolName string, input json.RawMessage) Message {
	return Message{
		Role: RoleAssistant,
		Blocks: []ContentBlock{{
			Kind:      BlockToolUse,
			ToolName:  toolName,
			ToolUseID: toolUseID,
			ToolInput: input,
		}},
		Timestamp: time.Now(),
	}
}

// NewToolResultMessage creates a user message carrying one tool result payload.
func NewToolResultMessage(toolUseID, payload string) Message {
	return Message{
		Role: RoleUser,
		Blocks: []ContentBlock{{
			Kind:      BlockToolResult,
			ToolUseID: toolUseID,
			Blocks:    []ContentBlock{{Kind: BlockText, Text: payload}},
		}},
		Timestamp: time.Now(),
	}
}

// WithID sets the message id.
func (m Message) WithID(id string) Message {
	m.ID = id
	return m
}

// WithBlocks replaces the message content blocks.
func (m Message) WithBlocks(blocks []ContentBlock) Message {
	m.Blocks = blocks
	return m
}

// Text concatenates the message's top-level text blocks in order.
// Tool payloads are not included.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Kind == BlockText && b.Text != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// HasToolUse reports whether any block is a tool invocation.
func (m Message) HasToolUse() bool {
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			return true
		}
	}
	return false
}

// HasToolResult reports whether any block is a tool result.
func (m Message) HasToolResult() bool {
	for _, b := range m.Blocks {
		if b.Kind == BlockToolResult {
			return true
		}
	}
	return false
}
