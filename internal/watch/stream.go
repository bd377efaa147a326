package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dyluth/romp/pkg/blackboard"
)

// OutputFormat selects how StreamActivity renders events.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %q (must be 'default' or 'json')", s)
	}
}

// Filter restricts which events are shown. Zero values mean "everything".
type Filter struct {
	Kinds   []blackboard.EventKind
	AgentID string
}

func (f Filter) matches(e *blackboard.BoardEvent) bool {
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

type formatter interface {
	FormatEvent(e *blackboard.BoardEvent) error
}

func newFormatter(format OutputFormat, w io.Writer) formatter {
	if format == OutputFormatJSON {
		return &jsonFormatter{encoder: json.NewEncoder(w)}
	}
	return &defaultFormatter{writer: w}
}

// defaultFormatter renders one human-readable line per event.
type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatEvent(e *blackboard.BoardEvent) error {
	ts := time.UnixMilli(e.CreatedAtMs).Format("15:04:05")

	var line string
	switch e.Kind {
	case blackboard.EventEntry:
		line = fmt.Sprintf("%s %s posted: by=%s, scope=%s, %q", entryIcon(e.Type), e.Type, e.AgentID, e.Scope, e.Summary)
	case blackboard.EventDecision:
		line = fmt.Sprintf("⚖️  Decision recorded: by=%s, scope=%s, %q", e.AgentID, e.Scope, e.Summary)
	case blackboard.EventHandoff:
		line = fmt.Sprintf("🤝 Handoff created: by=%s, scope=%s, %q", e.AgentID, e.Scope, e.Summary)
	case blackboard.EventDelegation:
		line = fmt.Sprintf("📨 Delegation opened: by=%s, scope=%s, %q", e.AgentID, e.Scope, e.Summary)
	default:
		line = fmt.Sprintf("• %s %s: by=%s", e.Kind, e.ID, e.AgentID)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, line)
	return err
}

func entryIcon(entryType string) string {
	switch blackboard.EntryType(entryType) {
	case blackboard.EntryTypeWarning:
		return "⚠️ "
	case blackboard.EntryTypeNeed:
		return "📌"
	case blackboard.EntryTypeDecision:
		return "⚖️ "
	case blackboard.EntryTypeDelegation:
		return "📨"
	default:
		return "📝"
	}
}

// jsonFormatter writes line-delimited JSON.
type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) FormatEvent(e *blackboard.BoardEvent) error {
	return f.encoder.Encode(e)
}

// StreamActivity writes board events to w until ctx is cancelled or the
// subscription closes. Subscription errors are logged and skipped.
func StreamActivity(ctx context.Context, client *blackboard.Client, format OutputFormat, filter Filter, w io.Writer) error {
	sub, err := client.SubscribeBoardEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	f := newFormatter(format, w)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if !filter.matches(event) {
				continue
			}
			if err := f.FormatEvent(event); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			log.Printf("[WARN] Board event subscription error: %v", err)
		}
	}
}
