package summary

import (
	"context"
	"strings"
)

// Assistant defaults
const (
	ContextWords = 15
	MinNewWords  = 4
)

// NoObjection is the model reply meaning there is nothing to suggest
const NoObjection = "0"

const objectionPrompt = `You help a salesperson during a live call.
You receive the last words spoken. If they contain a customer objection,
reply with one short sentence the salesperson can say to handle it.
If there is no objection, reply with exactly 0.`

var interjections = map[string]bool{
	"uh": true, "ah": true, "então": true, "aham": true, "é": true,
	"né": true, "hmm": true, "hum": true, "eh": true, "ahã": true,
	"um": true,
}

// Assistant suggests objection handling for a live transcript
type Assistant struct {
	model  ChatModel
	params Params
}

// NewAssistant creates an objection assistant
func NewAssistant(model ChatModel) *Assistant {
	return &Assistant{
		model:  model,
		params: Params{MaxTokens: 80, Temperature: 0.3},
	}
}

// Suggest returns a suggestion for the tail of text, or "" when there is none
func (a *Assistant) Suggest(ctx context.Context, text string) (string, error) {
	tail := LastWords(text, ContextWords)
	if tail == "" {
		return "", nil
	}

	reply, err := a.model.Complete(ctx, []Message{
		{Role: RoleSystem, Content: objectionPrompt},
		{Role: RoleUser, Content: tail},
	}, a.params)
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == NoObjection {
		return "", nil
	}
	return reply, nil
}

// LastWords returns the last n whitespace-separated words of text
func LastWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// CountNewWords counts meaningful words in current that were not in previous.
// Interjections are ignored. When current does not extend previous, every
// word counts as new.
func CountNewWords(current, previous string) int {
	current = strings.TrimSpace(current)
	previous = strings.TrimSpace(previous)

	fresh := current
	if previous != "" && strings.HasPrefix(current, previous) {
		fresh = current[len(previous):]
	}

	count := 0
	for _, w := range strings.Fields(fresh) {
		if !interjections[strings.ToLower(w)] {
			count++
		}
	}
	return count
}
