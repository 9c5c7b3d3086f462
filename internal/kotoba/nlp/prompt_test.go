package nlp

import (
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

func TestSystemPrompt_Standard(t *testing.T) {
	s := settings.Defaults()
	s.FollowUpsEnabled = false
	now := time.Date(2026, 2, 24, 10, 30, 0, 0, time.UTC)

	got := SystemPrompt(false, s, now)

	for _, want := range []string{
		`You are Kotoba, a helpful AI assistant.`,
		"- Response style: balanced",
		"- Memory enabled: Yes",
		"- Follow-ups enabled: No",
		"2026-02-24 10:30 UTC",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("standard prompt missing %q", want)
		}
	}
	if strings.Contains(got, "Personality mode") {
		t.Error("standard prompt should not state the personality mode")
	}
}

func TestSystemPrompt_Enhanced(t *testing.T) {
	s := settings.Defaults()
	s.PersonalityMode = settings.PersonalityAcademic
	s.ResponseStyle = settings.StyleDetailed

	got := SystemPrompt(true, s, time.Now())

	for _, want := range []string{
		`"Kotoba Pro"`,
		"- Personality mode: academic",
		"- Response style: detailed",
		"200-400 words",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("enhanced prompt missing %q", want)
		}
	}
}
