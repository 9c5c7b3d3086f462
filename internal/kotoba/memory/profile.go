// Package memory keeps long-term facts about each signed-in user, harvests
// them from finished turns, and turns them (with the conversation window)
// into the context sent with every completion request.
package memory

import "time"

// Caps on the profile lists. The oldest entries are dropped first.
const (
	MaxInterests = 20
	MaxTopics    = 50
	MaxHistory   = 100
	// excerptLen is how many characters of each side of a turn are kept
	// in the history.
	excerptLen = 100
)

// Personal-info keys.
const (
	FactName       = "name"
	FactLocation   = "location"
	FactProfession = "profession"
)

// Profile is everything remembered about one user.
type Profile struct {
	PersonalInfo        map[string]string `json:"personalInfo"`
	Preferences         map[string]string `json:"preferences"`
	Interests           []string          `json:"interests"`
	Topics              []string          `json:"topics"`
	ConversationHistory []HistoryEntry    `json:"conversationHistory"`
	ConversationStyle   string            `json:"conversationStyle"`
	LastActive          time.Time         `json:"lastActive"`
}

// HistoryEntry is a truncated record of one completed turn.
type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	UserExcerpt    string    `json:"userMessage"`
	AIExcerpt      string    `json:"aiResponse"`
	ConversationID string    `json:"chatId"`
}

// NewProfile returns the empty profile shape.
func NewProfile(now time.Time) Profile {
	return Profile{
		PersonalInfo:        map[string]string{},
		Preferences:         map[string]string{},
		Interests:           []string{},
		Topics:              []string{},
		ConversationHistory: []HistoryEntry{},
		ConversationStyle:   "balanced",
		LastActive:          now,
	}
}

// IsEmpty reports whether the profile has nothing worth adding to a prompt.
func (p *Profile) IsEmpty() bool {
	return len(p.PersonalInfo) == 0 && len(p.Preferences) == 0 &&
		len(p.Interests) == 0 && len(p.Topics) == 0
}

func (p *Profile) clone() Profile {
	out := *p
	out.PersonalInfo = cloneMap(p.PersonalInfo)
	out.Preferences = cloneMap(p.Preferences)
	out.Interests = append([]string{}, p.Interests...)
	out.Topics = append([]string{}, p.Topics...)
	out.ConversationHistory = append([]HistoryEntry{}, p.ConversationHistory...)
	return out
}

// normalize fills nil collections left by older or hand-edited documents.
func (p *Profile) normalize() {
	if p.PersonalInfo == nil {
		p.PersonalInfo = map[string]string{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]string{}
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	if p.ConversationHistory == nil {
		p.ConversationHistory = []HistoryEntry{}
	}
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// keepLast returns the last n elements of s.
func keepLast[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return append([]T{}, s[len(s)-n:]...)
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
