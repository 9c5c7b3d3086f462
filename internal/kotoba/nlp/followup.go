package nlp

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxFollowUps is the number of suggestions offered after a reply.
	MaxFollowUps = 3
	// FollowUpTTL is how long suggestions stay visible.
	FollowUpTTL = 30 * time.Second
	// longReply is the length above which an elaboration is offered.
	longReply = 500
)

type followUpRule struct {
	keywords    []string
	suggestions []string
}

// followUpRules are checked in order against the lower-cased reply.
var followUpRules = []followUpRule{
	{
		keywords: []string{"programming", "code"},
		suggestions: []string{
			"Would you like help with a specific programming language?",
			"Do you want to see some code examples?",
		},
	},
	{
		keywords: []string{"recipe", "cooking"},
		suggestions: []string{
			"Would you like the full recipe with ingredients?",
			"Do you have any dietary restrictions I should know about?",
		},
	},
	{
		keywords: []string{"travel", "trip"},
		suggestions: []string{
			"What's your budget for this trip?",
			"How long are you planning to stay?",
		},
	},
	{
		keywords: []string{"learn", "study"},
		suggestions: []string{
			"What's your current level of knowledge on this topic?",
			"Would you like me to recommend some resources?",
		},
	},
}

// FollowUps suggests up to MaxFollowUps questions for the user to ask next.
// It returns nil when disabled.
func FollowUps(reply string, enabled bool) []string {
	if !enabled {
		return nil
	}
	lower := strings.ToLower(reply)

	var out []string
	for _, rule := range followUpRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, rule.suggestions...)
				break
			}
		}
	}
	if utf8.RuneCountInString(reply) > longReply {
		out = append(out, "Would you like me to elaborate on any specific part?")
	}
	if strings.Contains(reply, "?") {
		out = append(out, "Is there anything else you'd like to know about this?")
	}

	if len(out) > MaxFollowUps {
		out = out[:MaxFollowUps]
	}
	return out
}
