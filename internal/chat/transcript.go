package chat

import (
	"strings"

	"github.com/spurstore/supportchat/internal/store"
)

// BuildTranscript renders an ordered window of past turns plus the new
// user message into a single prompt string.
//
// history must be ordered oldest to newest and contain only user/agent
// turns. The output is deterministic: one labeled line per turn, then the
// new user line, then a trailing "Agent:" cue inviting the reply.
func BuildTranscript(history []store.Turn, userText string) string {
	var lines []string
	lines = append(lines, "Conversation so far:")
	for _, turn := range history {
		label := "User"
		if turn.Role == store.RoleAgent {
			label = "Agent"
		}
		lines = append(lines, label+": "+turn.Text)
	}
	lines = append(lines, "User: "+userText)
	lines = append(lines, "Agent:")
	return strings.Join(lines, "\n")
}
