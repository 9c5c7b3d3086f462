// Package settings holds the user-adjustable conversation settings that
// shape context assembly, the system prompt and post-reply processing.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ResponseStyle controls reply length and tone in the system prompt.
type ResponseStyle string

const (
	StyleConcise  ResponseStyle = "concise"
	StyleBalanced ResponseStyle = "balanced"
	StyleDetailed ResponseStyle = "detailed"
	StyleCreative ResponseStyle = "creative"
)

// PersonalityMode controls the assistant's register in the system prompt.
type PersonalityMode string

const (
	PersonalityProfessional PersonalityMode = "professional"
	PersonalityFriendly     PersonalityMode = "friendly"
	PersonalityCasual       PersonalityMode = "casual"
	PersonalityAcademic     PersonalityMode = "academic"
)

// MaxContextWindow bounds ContextWindowSize.
const MaxContextWindow = 100

// Settings is the persisted settings document. JSON names match the stored
// format.
type Settings struct {
	// ContextWindowSize is how many trailing messages are sent with each
	// request.
	ContextWindowSize   int             `json:"contextLength"`
	ResponseStyle       ResponseStyle   `json:"responseStyle"`
	PersonalityMode     PersonalityMode `json:"personalityMode"`
	MemoryEnabled       bool            `json:"enableMemory"`
	FollowUpsEnabled    bool            `json:"enableFollowUps"`
	RememberPreferences bool            `json:"rememberPreferences"`
}

var ErrInvalid = errors.New("settings: invalid value")

// Defaults returns the settings used before the user changes anything.
func Defaults() Settings {
	return Settings{
		ContextWindowSize:   10,
		ResponseStyle:       StyleBalanced,
		PersonalityMode:     PersonalityFriendly,
		MemoryEnabled:       true,
		FollowUpsEnabled:    true,
		RememberPreferences: true,
	}
}

// Validate checks ranges and enumerations.
func (s Settings) Validate() error {
	if s.ContextWindowSize < 1 || s.ContextWindowSize > MaxContextWindow {
		return fmt.Errorf("%w: contextLength must be between 1 and %d, got %d", ErrInvalid, MaxContextWindow, s.ContextWindowSize)
	}
	switch s.ResponseStyle {
	case StyleConcise, StyleBalanced, StyleDetailed, StyleCreative:
	default:
		return fmt.Errorf("%w: responseStyle %q", ErrInvalid, s.ResponseStyle)
	}
	switch s.PersonalityMode {
	case PersonalityProfessional, PersonalityFriendly, PersonalityCasual, PersonalityAcademic:
	default:
		return fmt.Errorf("%w: personalityMode %q", ErrInvalid, s.PersonalityMode)
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	ContextWindowSize   *int
	ResponseStyle       *ResponseStyle
	PersonalityMode     *PersonalityMode
	MemoryEnabled       *bool
	FollowUpsEnabled    *bool
	RememberPreferences *bool
}

// Merge returns p with the non-nil fields of q laid over it.
func (p Patch) Merge(q Patch) Patch {
	if q.ContextWindowSize != nil {
		p.ContextWindowSize = q.ContextWindowSize
	}
	if q.ResponseStyle != nil {
		p.ResponseStyle = q.ResponseStyle
	}
	if q.PersonalityMode != nil {
		p.PersonalityMode = q.PersonalityMode
	}
	if q.MemoryEnabled != nil {
		p.MemoryEnabled = q.MemoryEnabled
	}
	if q.FollowUpsEnabled != nil {
		p.FollowUpsEnabled = q.FollowUpsEnabled
	}
	if q.RememberPreferences != nil {
		p.RememberPreferences = q.RememberPreferences
	}
	return p
}

// Apply returns s with the non-nil fields of p merged in.
func (p Patch) Apply(s Settings) Settings {
	if p.ContextWindowSize != nil {
		s.ContextWindowSize = *p.ContextWindowSize
	}
	if p.ResponseStyle != nil {
		s.ResponseStyle = *p.ResponseStyle
	}
	if p.PersonalityMode != nil {
		s.PersonalityMode = *p.PersonalityMode
	}
	if p.MemoryEnabled != nil {
		s.MemoryEnabled = *p.MemoryEnabled
	}
	if p.FollowUpsEnabled != nil {
		s.FollowUpsEnabled = *p.FollowUpsEnabled
	}
	if p.RememberPreferences != nil {
		s.RememberPreferences = *p.RememberPreferences
	}
	return s
}

// ParseAssignment turns "name=value" (using the stored JSON names) into a
// Patch. Used by the CLI and the chat bindings' /set command.
func ParseAssignment(assignment string) (Patch, error) {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return Patch{}, fmt.Errorf("%w: expected name=value, got %q", ErrInvalid, assignment)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	var p Patch
	switch name {
	case "contextLength":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Patch{}, fmt.Errorf("%w: contextLength %q is not a number", ErrInvalid, value)
		}
		p.ContextWindowSize = &n
	case "responseStyle":
		v := ResponseStyle(value)
		p.ResponseStyle = &v
	case "personalityMode":
		v := PersonalityMode(value)
		p.PersonalityMode = &v
	case "enableMemory", "enableFollowUps", "rememberPreferences":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Patch{}, fmt.Errorf("%w: %s %q is not a boolean", ErrInvalid, name, value)
		}
		switch name {
		case "enableMemory":
			p.MemoryEnabled = &b
		case "enableFollowUps":
			p.FollowUpsEnabled = &b
		default:
			p.RememberPreferences = &b
		}
	default:
		return Patch{}, fmt.Errorf("%w: unknown setting %q", ErrInvalid, name)
	}
	return p, nil
}

// Describe lists s as name=value lines, in the form ParseAssignment accepts.
func Describe(s Settings) string {
	return fmt.Sprintf(
		"contextLength=%d\nresponseStyle=%s\npersonalityMode=%s\nenableMemory=%t\nenableFollowUps=%t\nrememberPreferences=%t",
		s.ContextWindowSize, s.ResponseStyle, s.PersonalityMode,
		s.MemoryEnabled, s.FollowUpsEnabled, s.RememberPreferences,
	)
}
