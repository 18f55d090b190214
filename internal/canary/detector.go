// Package canary scores inbound messages for prompt-injection markers.
// It is telemetry only: scores never change an allow/block outcome, they
// make anomalous behavior visible, including from trusted senders.
package canary

import (
	"regexp"
	"strings"
	"time"
)

// Result is one analysis outcome. Pattern and verb lists keep catalogue
// order, deduplicated.
type Result struct {
	Score    float64   `json:"score"`
	Patterns []string  `json:"patterns"`
	Verbs    []string  `json:"verbs"`
	Ts       time.Time `json:"ts"`
}

type namedRegex struct {
	name string
	re   *regexp.Regexp
}

// Injection pattern catalogue. Go's regexp engine is RE2: every pattern runs
// in linear time on input length, so a 100 KB message full of trigger tokens
// stays well inside the latency budget.
var patterns = []namedRegex{
	{"ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(previous|all|prior)\s+instructions`)},
	{"disregard_safety", regexp.MustCompile(`(?i)disregard\s+(previous|safety|rules)`)},
	{"system_tag", regexp.MustCompile(`(?i)\[(system|admin|root)\]`)},
	{"from_authority", regexp.MustCompile(`(?i)(from|by)\s*:\s*(system|admin)`)},
	{"admin_mode", regexp.MustCompile(`(?i)you\s+are\s+now\s+in\s+(admin|root|god)\s+mode`)},
	{"enable_mode", regexp.MustCompile(`(?i)enable\s+(debug|admin)\s+mode`)},
	{"close_tag", regexp.MustCompile(`(?i)</(system|instructions|prompt)>`)},
	{"new_instructions", regexp.MustCompile(`(?i)new\s+instructions\s*:`)},
	{"urgent_action", regexp.MustCompile(`(?is)urgent.*action\s+required`)},
	{"must_action", regexp.MustCompile(`(?i)must\s+(forward|send|execute|delete)`)},
	{"jailbreak", regexp.MustCompile(`(?i)\b(dan|jailbreak|bypass\s+filters)\b`)},
	{"pretend_mode", regexp.MustCompile(`(?i)pretend\s+you\s+are\s+(an?\s+)?(unrestricted|evil|hacker)`)},
}

// Sensitive verbs, matched on word boundaries.
var verbs = []namedRegex{
	{"forward", nil}, {"send", nil}, {"email", nil}, {"share", nil},
	{"upload", nil}, {"delete", nil}, {"remove", nil}, {"destroy", nil},
	{"execute", nil}, {"run", nil}, {"install", nil}, {"download", nil},
	{"transfer", nil}, {"payment", nil}, {"purchase", nil}, {"grant", nil},
	{"allow", nil}, {"authorize", nil},
}

func init() {
	for i := range verbs {
		verbs[i].re = regexp.MustCompile(`(?i)\b` + verbs[i].name + `\b`)
	}
}

// Scoring weights: each pattern contributes patternWeight; each verb
// contributes verbWeight with the verb total capped at verbCap; the final
// score is clamped to [0,1].
const (
	patternWeight = 0.3
	verbWeight    = 0.1
	verbCap       = 0.3
)

// Analyze scores one message. Empty content scores zero.
func Analyze(content string) Result {
	r := Result{Patterns: []string{}, Verbs: []string{}, Ts: time.Now().UTC()}
	if content == "" {
		return r
	}

	for _, p := range patterns {
		if p.re.MatchString(content) {
			r.Patterns = append(r.Patterns, p.name)
		}
	}
	// A substring test on a lower-cased copy skips the regexp scan for verbs
	// that cannot occur. "ſ" folds to "s" under (?i), so it is mapped first
	// to keep the two checks in agreement.
	lower := strings.ToLower(strings.ReplaceAll(content, "ſ", "s"))
	for _, v := range verbs {
		if !strings.Contains(lower, v.name) {
			continue
		}
		if v.re.MatchString(content) {
			r.Verbs = append(r.Verbs, v.name)
		}
	}

	score := patternWeight * float64(len(r.Patterns))
	verbScore := verbWeight * float64(len(r.Verbs))
	if verbScore > verbCap {
		verbScore = verbCap
	}
	score += verbScore
	if score > 1 {
		score = 1
	}
	r.Score = score
	return r
}
