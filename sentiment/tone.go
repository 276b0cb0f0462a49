package sentiment

import "strings"

type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

type KeywordCategory string

const (
	KeywordsNone              KeywordCategory = "none"
	KeywordsFinancialDistress KeywordCategory = "financial_distress"
	KeywordsPositive          KeywordCategory = "positive"
)

// ToneUnavailable is used wherever no tone could be derived.
const ToneUnavailable = "Analysis not available"

var distressTerms = []string{
	"can't pay", "cannot pay", "unable to pay", "can't afford", "cannot afford",
	"overdue", "arrears", "default", "bankrupt", "insolvency", "insolvent",
	"debt", "late payment", "missed payment", "cash flow", "struggling",
	"hardship", "restructure", "write off", "write-off",
}

var positiveTerms = []string{
	"thank you", "thanks", "appreciate", "great", "happy", "pleased",
	"helpful", "perfect", "excellent", "wonderful", "glad",
}

// MatchKeywords classifies raw speaker text by vocabulary. Distress terms
// take precedence over positive ones.
func MatchKeywords(text string) KeywordCategory {
	lower := strings.ToLower(text)
	for _, t := range distressTerms {
		if strings.Contains(lower, t) {
			return KeywordsFinancialDistress
		}
	}
	for _, t := range positiveTerms {
		if strings.Contains(lower, t) {
			return KeywordsPositive
		}
	}
	return KeywordsNone
}

type toneKey struct {
	label    Label
	keywords KeywordCategory
}

// customerTones covers customer speech that matched a keyword category.
var customerTones = map[toneKey]string{
	{Positive, KeywordsFinancialDistress}: "The customer stayed positive despite discussing financial difficulties",
	{Negative, KeywordsFinancialDistress}: "The customer appears to be under financial stress and frustrated with the situation",
	{Neutral, KeywordsFinancialDistress}:  "The customer discussed financial difficulties in a composed manner",
	{Mixed, KeywordsFinancialDistress}:    "The customer is concerned about their finances but open to a resolution",

	{Positive, KeywordsPositive}: "The customer was appreciative and satisfied with the help received",
	{Negative, KeywordsPositive}: "The customer was polite but remained unhappy with the outcome",
	{Neutral, KeywordsPositive}:  "The customer was courteous and neutral",
	{Mixed, KeywordsPositive}:    "The customer was courteous though their sentiment varied",
}

// ToneSummary describes a speaker's tone. Customer text matching a keyword
// category gets that category's description; everything else reads
// "Consistent <label>" or "Tone shifted from A to B, then B to C".
func ToneSummary(role Role, dominant Label, rawText string, shifts []string) string {
	if role == RoleCustomer {
		if kw := MatchKeywords(rawText); kw != KeywordsNone {
			if s, ok := customerTones[toneKey{dominant, kw}]; ok {
				return s
			}
		}
	}
	if len(shifts) > 0 {
		return "Tone shifted from " + strings.Join(shifts, ", then ")
	}
	if !dominant.Valid() {
		return ToneUnavailable
	}
	return "Consistent " + strings.ToLower(string(dominant))
}

// ToneShifts lists consecutive label changes as "X to Y".
func ToneShifts(labels []Label) []string {
	var out []string
	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			out = append(out, string(labels[i-1])+" to "+string(labels[i]))
		}
	}
	return out
}
