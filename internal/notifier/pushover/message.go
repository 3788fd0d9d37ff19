package pushover

import (
	"strings"

	"github.com/newthinker/pushrelay/internal/core"
)

// ComposeMessage renders the notification body followed by a blank line and
// one "label: value" line per attribute, in order. Nothing is escaped.
func ComposeMessage(n core.Notification) string {
	if len(n.Attributes) == 0 {
		return n.Message
	}

	var sb strings.Builder
	sb.WriteString(n.Message)
	sb.WriteString("\n\n")

	for i, attr := range n.Attributes {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(attr.Label)
		sb.WriteString(": ")
		sb.WriteString(attr.Value)
	}

	return sb.String()
}
