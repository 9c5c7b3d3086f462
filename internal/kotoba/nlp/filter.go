package nlp

import "strings"

// Rejection reasons shown to the user when a message is refused.
const (
	ReasonInappropriate = "Please keep the conversation respectful and avoid using inappropriate language."
	ReasonShouting      = "Please avoid using excessive capital letters."
)

// denylist entries are matched as lower-cased substrings, so "die" also
// refuses "diet".
var denylist = []string{
	"fuck", "shit", "bitch", "asshole", "damn", "crap", "piss", "bastard",
	"slut", "whore", "retard", "gay", "fag", "nazi", "hitler",
	"kill yourself", "kys", "suicide", "die",
}

// FilterContent reports whether text may be sent, and if not, why.
func FilterContent(text string) (ok bool, reason string) {
	lower := strings.ToLower(text)
	for _, word := range denylist {
		if strings.Contains(lower, word) {
			return false, ReasonInappropriate
		}
	}
	// Text without letters is upper-case too, so "12345678901" is refused.
	if len(text) > 10 && text == strings.ToUpper(text) {
		return false, ReasonShouting
	}
	return true, ""
}
