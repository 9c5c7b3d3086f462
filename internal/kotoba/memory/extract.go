package memory

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// factPattern extracts one kind of personal fact. Patterns for a kind are
// tried in order and the last one that matches wins.
type factPattern struct {
	kind string
	re   *regexp.Regexp
}

var factPatterns = []factPattern{
	{FactName, regexp.MustCompile(`(?i)my name is ([a-z\s]+)`)},
	{FactName, regexp.MustCompile(`(?i)i'm ([a-z\s]+)`)},
	{FactName, regexp.MustCompile(`(?i)call me ([a-z\s]+)`)},

	{FactLocation, regexp.MustCompile(`(?i)i live in ([a-z\s,]+)`)},
	{FactLocation, regexp.MustCompile(`(?i)i'm from ([a-z\s,]+)`)},
	{FactLocation, regexp.MustCompile(`(?i)i'm in ([a-z\s,]+)`)},

	{FactProfession, regexp.MustCompile(`(?i)i work as (?:a |an )?([a-z\s]+)`)},
	{FactProfession, regexp.MustCompile(`(?i)i'm (?:a |an )?([a-z\s]+) by profession`)},
	{FactProfession, regexp.MustCompile(`(?i)my job is ([a-z\s]+)`)},
}

// clauseBreaks end a captured fact: "my name is Ava and I love tea" yields
// "Ava".
var clauseBreaks = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "because": true,
}

var interestKeywords = []string{
	"programming", "coding", "music", "movies", "books", "travel", "cooking",
	"sports", "gaming", "art", "photography", "fitness", "technology",
	"science", "history", "politics", "nature", "animals", "fashion",
}

var positiveCues = []string{"love", "like", "enjoy", "interested in", "passionate about"}

var topicKeywords = []string{
	"javascript", "python", "react", "node", "html", "css", "programming",
	"machine learning", "ai", "blockchain", "cryptocurrency", "web development",
	"mobile app", "database", "api", "algorithm", "data structure",
	"travel", "recipe", "workout", "health", "business", "marketing",
	"design", "writing", "education", "science", "physics", "chemistry",
	"biology", "math", "history", "literature", "philosophy",
}

// Turn is one completed exchange handed to the Extractor.
type Turn struct {
	Identity       identity.Identity
	Settings       settings.Settings
	ConversationID string
	UserText       string
	Reply          string
}

// Extractor updates profiles from finished turns.
type Extractor struct {
	Store  *Store
	Logger *slog.Logger
}

// Process runs every extractor against the turn and persists the result in
// one write. It does nothing when memory is disabled or the identity is
// anonymous. Failures are logged and dropped.
func (e *Extractor) Process(ctx context.Context, t Turn) {
	if !t.Settings.MemoryEnabled || !t.Identity.Authenticated() {
		return
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	err := e.Store.Update(ctx, t.Identity.UserID, func(p *Profile) {
		extractPersonalInfo(t.UserText, p)
		extractInterests(t.UserText, p)
		extractTopics(t.UserText, t.Reply, p)
		if t.Settings.RememberPreferences {
			recordPreferences(t.Settings, p)
		}
		appendHistory(t, p, e.Store.now())
	})
	if err != nil {
		logger.Warn("memory: extraction failed",
			"user_id", t.Identity.UserID,
			"conversation_id", t.ConversationID,
			"err", err,
		)
	}
}

// --- 1. Personal info ---

func extractPersonalInfo(text string, p *Profile) {
	for _, fp := range factPatterns {
		m := fp.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := cutAtClauseBreak(m[1]); v != "" {
			p.PersonalInfo[fp.kind] = v
		}
	}
}

// cutAtClauseBreak trims a capture and drops everything from the first
// conjunction on.
func cutAtClauseBreak(capture string) string {
	words := strings.Fields(capture)
	for i, w := range words {
		if clauseBreaks[strings.ToLower(strings.Trim(w, ","))] {
			words = words[:i]
			break
		}
	}
	return strings.Trim(strings.Join(words, " "), " ,")
}

// --- 2. Interests ---

// extractInterests records a keyword when some positive cue occurs before
// the keyword's first occurrence. The check is positional only.
func extractInterests(text string, p *Profile) {
	lower := strings.ToLower(text)
	for _, kw := range interestKeywords {
		kwAt := strings.Index(lower, kw)
		if kwAt < 0 || contains(p.Interests, kw) {
			continue
		}
		for _, cue := range positiveCues {
			if cueAt := strings.Index(lower, cue); cueAt >= 0 && cueAt < kwAt {
				p.Interests = append(p.Interests, kw)
				break
			}
		}
	}
	p.Interests = keepLast(p.Interests, MaxInterests)
}

// --- 3. Topics ---

func extractTopics(userText, reply string, p *Profile) {
	for _, text := range []string{userText, reply} {
		lower := strings.ToLower(text)
		for _, kw := range topicKeywords {
			if strings.Contains(lower, kw) && !contains(p.Topics, kw) {
				p.Topics = append(p.Topics, kw)
			}
		}
	}
	p.Topics = keepLast(p.Topics, MaxTopics)
}

// --- 4. Preferences ---

func recordPreferences(s settings.Settings, p *Profile) {
	p.Preferences["responseStyle"] = string(s.ResponseStyle)
	p.Preferences["personalityMode"] = string(s.PersonalityMode)
	p.ConversationStyle = string(s.ResponseStyle)
}

// --- 5. History ---

func appendHistory(t Turn, p *Profile, now time.Time) {
	p.ConversationHistory = append(p.ConversationHistory, HistoryEntry{
		Timestamp:      now,
		UserExcerpt:    excerpt(t.UserText),
		AIExcerpt:      excerpt(t.Reply),
		ConversationID: t.ConversationID,
	})
	p.ConversationHistory = keepLast(p.ConversationHistory, MaxHistory)
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen])
}
