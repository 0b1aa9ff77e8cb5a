package chat

import (
	"fmt"
	"strings"

	"parley/server/internal/store"
)

// formatHistory serialises messages as comma-separated
// msg_id:from_username:content_b64:timestamp, preserving the order the
// store returned (newest first). "empty" when there are none.
func formatHistory(msgs []store.Message) string {
	if len(msgs) == 0 {
		return "empty"
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = fmt.Sprintf("%d:%s:%s:%d", m.ID, m.From, m.Content, m.TS)
	}
	return strings.Join(parts, ",")
}
