package runner

import (
	"encoding/json"
	"fmt"
)

// streamLine is one line of the claude CLI's stream-json output.
type streamLine struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Result  string          `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
	Message *streamEnvelope `json:"message,omitempty"`
}

type streamEnvelope struct {
	Content json.RawMessage `json:"content"`
}

type streamBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// DecodeLine converts one stream-json line into a Message.
// Message content may be a plain string or an array of typed blocks.
func DecodeLine(line []byte) (Message, error) {
	var raw streamLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, fmt.Errorf("invalid stream line: %w", err)
	}

	msg := Message{Kind: Kind(raw.Type)}
	switch msg.Kind {
	case KindSystem:
		return msg, nil
	case KindResult:
		msg.Text = raw.Result
		msg.IsError = raw.IsError
		return msg, nil
	case KindAssistant, KindUser:
	default:
		return Message{}, fmt.Errorf("unknown stream message type: %q", raw.Type)
	}

	if raw.Message == nil || len(raw.Message.Content) == 0 {
		return msg, nil
	}

	var text string
	if err := json.Unmarshal(raw.Message.Content, &text); err == nil {
		msg.Text = text
		return msg, nil
	}

	var blocks []streamBlock
	if err := json.Unmarshal(raw.Message.Content, &blocks); err != nil {
		return Message{}, fmt.Errorf("invalid message content: %w", err)
	}
	for _, b := range blocks {
		block := Block{Type: b.Type}
		switch b.Type {
		case "text":
			block.Text = b.Text
		case "tool_use":
			block.Tool = b.Name
		}
		msg.Blocks = append(msg.Blocks, block)
	}
	return msg, nil
}
