package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DegradedMarker prefixes every fallback analysis
const DegradedMarker = "[DEGRADED]"

// DefaultSystemPrompt asks for a structured meeting summary
const DefaultSystemPrompt = `You are an assistant that analyses meeting and sales call transcripts.
Write, in the same language as the transcript:
1. A concise summary of the conversation.
2. The key points and decisions.
3. Action items with owners when they are mentioned.
4. Objections raised and how they were handled.
Do not invent facts that are not in the transcript.`

// ErrEmptyTranscript is returned when there is nothing to summarize
var ErrEmptyTranscript = errors.New("transcript is empty")

// Summarizer produces the final analysis of a transcript
type Summarizer struct {
	model        ChatModel
	systemPrompt string
	params       Params
}

// NewSummarizer creates a summarizer. An empty prompt uses DefaultSystemPrompt.
func NewSummarizer(model ChatModel, systemPrompt string, params Params) *Summarizer {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 1000
	}
	return &Summarizer{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
	}
}

// Summarize sends the fixed instruction followed by the transcript
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	analysis, err := s.model.Complete(ctx, []Message{
		{Role: RoleSystem, Content: s.systemPrompt},
		{Role: RoleUser, Content: transcript},
	}, s.params)
	if err != nil {
		return "", err
	}

	if analysis == "" {
		return "", fmt.Errorf("summarization returned an empty analysis")
	}
	return analysis, nil
}

// Fallback builds the analysis returned when summarization keeps failing.
// It carries the degraded marker, the transcript length in characters and
// the failure reason.
func Fallback(transcript string, reason error) string {
	why := "unknown error"
	if reason != nil {
		why = reason.Error()
	}

	var b strings.Builder
	b.WriteString(DegradedMarker)
	b.WriteString(" Automatic analysis is unavailable; the full transcript was preserved.\n")
	fmt.Fprintf(&b, "Transcript length: %d characters\n", utf8.RuneCountInString(transcript))
	fmt.Fprintf(&b, "Reason: %s", why)
	return b.String()
}
