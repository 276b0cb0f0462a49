// Package narrative produces the free-text summary and action list of a call.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/callinsight/call-pipeline/insights"
)

// SummaryUnavailable replaces a summary the generator could not produce.
const SummaryUnavailable = "An error occurred while generating the summary."

type Generator interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	ExtractInsights(ctx context.Context, transcript string) (string, error)
}

func summaryPrompt(transcript string) string {
	return "Analyze this corporate banking call transcript. This is a non-retail customer call " +
		"handling major business accounts and bad debt cases. " +
		"List only the following points without any additional text:\n" +
		"- Main purpose of call\n" +
		"- Financial amounts discussed\n" +
		"- Decisions made\n" +
		"- Next steps agreed\n\n" +
		"Transcript:\n" + transcript
}

func insightsPrompt(transcript string) string {
	return "From this corporate banking call transcript, list only the following without any additional text. " +
		"Start your answer with the line \"" + insights.ActionsHeader + ":\".\n\n" +
		insights.ActionsHeader + ":\n" +
		"- List specific tasks the bank employee must complete\n" +
		"- Include deadlines if mentioned\n" +
		"- Prioritize urgent items\n\n" +
		"Transcript:\n" + transcript
}

// Mock derives a narrative locally without a model. Used when no LLM
// provider is configured.
type Mock struct{}

// spokenLines strips speaker labels and blank lines from a transcript.
func spokenLines(transcript string) []string {
	var out []string
	for _, line := range strings.Split(transcript, "\n") {
		if _, text, ok := strings.Cut(line, ": "); ok {
			line = text
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (Mock) Summarize(_ context.Context, transcript string) (string, error) {
	body := spokenLines(transcript)
	if len(body) == 0 {
		return "", fmt.Errorf("mock summarize: empty transcript")
	}
	if len(body) > 3 {
		body = body[:3]
	}
	return "- Main purpose of call: " + strings.Join(body, " "), nil
}

func (Mock) ExtractInsights(_ context.Context, transcript string) (string, error) {
	var b strings.Builder
	b.WriteString(insights.ActionsHeader + ":")
	for _, item := range insights.ParseActionItems(strings.Join(spokenLines(transcript), " ")) {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String(), nil
}
