// Package insights holds the deterministic text heuristics applied to a
// finished transcript: customer details, topics and action items.
package insights

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type CustomerInfo struct {
	VerificationComplete bool   `json:"verification_complete"`
	CustomerName         string `json:"customer_name,omitempty"`
	AccountMentioned     bool   `json:"account_mentioned"`
}

var (
	verificationPhrases = []string{"verification complete", "verified successfully", "identity confirmed"}
	nameRe              = regexp.MustCompile(`name is ([A-Za-z\s]+)`)
	accountRe           = regexp.MustCompile(`account.*?number|account.*?#`)
)

func ExtractCustomerInfo(text string) CustomerInfo {
	var info CustomerInfo
	lower := strings.ToLower(text)
	for _, p := range verificationPhrases {
		if strings.Contains(lower, p) {
			info.VerificationComplete = true
			break
		}
	}
	if m := nameRe.FindStringSubmatch(text); m != nil {
		info.CustomerName = strings.TrimSpace(m[1])
	}
	info.AccountMentioned = accountRe.MatchString(lower)
	return info
}

var topicVocabulary = []string{
	"payment", "account", "balance", "transfer", "loan",
	"complaint", "issue", "support", "help", "problem",
}

// ExtractTopics reports which vocabulary topics occur in the text, sorted.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	out := []string{}
	for _, t := range topicVocabulary {
		if strings.Contains(lower, t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

var actionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`needs? to`),
	regexp.MustCompile(`should`),
	regexp.MustCompile(`must`),
	regexp.MustCompile(`required to`),
	regexp.MustCompile(`action items?:`),
	regexp.MustCompile(`follow[- ]ups?:`),
	regexp.MustCompile(`next steps?:`),
}

// ParseActionItems picks the sentences of the insights text that read like
// tasks, in order and without duplicates.
func ParseActionItems(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, sentence := range strings.Split(text, ".") {
		lower := strings.ToLower(sentence)
		for _, p := range actionPatterns {
			if !p.MatchString(lower) {
				continue
			}
			item := strings.TrimSpace(sentence)
			if item != "" && !seen[item] {
				seen[item] = true
				out = append(out, item)
			}
			break
		}
	}
	return out
}

// ActionsHeader is the heading the insights prompt asks the model to echo.
const ActionsHeader = "ACTIONS FOR BANK EMPLOYEE"

// ActionLines splits insights text into display lines, dropping blanks and
// the echoed header.
func ActionLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ActionsHeader) {
			continue
		}
		out = append(out, line)
	}
	return out
}

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*]`)

func CleanFilename(name string) string {
	return strings.ReplaceAll(unsafeFilenameRe.ReplaceAllString(name, ""), " ", "_")
}

// FormatDuration renders seconds as MM:SS.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
