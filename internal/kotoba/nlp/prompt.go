package nlp

import (
	"strings"
	"text/template"
	"time"

	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// AssistantName is how the assistant refers to itself.
const AssistantName = "Kotoba"

// styleGuidance maps each response style to the length guidance given to
// the model.
var styleGuidance = map[settings.ResponseStyle]string{
	settings.StyleConcise:  "Keep answers short and to the point, a few sentences unless more is asked for.",
	settings.StyleBalanced: "Keep answers helpful and proportionate, around 150-250 words unless asked for more.",
	settings.StyleDetailed: "Give thorough answers with examples and explanation, around 200-400 words.",
	settings.StyleCreative: "Answer with imagination: analogies, stories and vivid language are welcome.",
}

type promptData struct {
	Name        string
	Enhanced    bool
	Style       settings.ResponseStyle
	StyleHint   string
	Personality settings.PersonalityMode
	Memory      string
	FollowUps   string
	Now         string
}

var systemPromptTmpl = template.Must(template.New("system").Parse(
	`You are {{.Name}}, a helpful AI assistant{{if .Enhanced}} with enhanced contextual memory{{end}}.

IDENTITY:
- Always identify yourself as "{{.Name}}" when asked about your name or identity.
- Never claim to be another AI system.
{{- if .Enhanced}}
- Use what you remember about the user to personalise answers.
{{- end}}

CONTEXT:
- Pay attention to the earlier messages of this conversation and refer back to them when relevant.
{{- if .Enhanced}}
- You may be given facts about the user (name, location, profession, interests). Use them naturally.
{{- end}}

RESPONSE STYLE CONFIGURATION:
- Response style: {{.Style}}
{{- if .Enhanced}}
- Personality mode: {{.Personality}}
{{- end}}
- Memory enabled: {{.Memory}}
- Follow-ups enabled: {{.FollowUps}}

SAFETY:
- Never use profanity, offensive language or inappropriate content.
- Refuse to produce harmful, illegal or unethical content.
- Stay respectful and neutral, even when the user is not.

RESPONSE GUIDELINES:
- {{.StyleHint}}
- Be accurate. For current events, mention your knowledge cutoff.

CODE FORMATTING:
- Always put code in fenced markdown blocks and name the language after the opening backticks.

CURRENT CONTEXT:
- Current date and time: {{.Now}}
`))

// DisplayName is the assistant's name as shown to an identity.
func DisplayName(enhanced bool) string {
	if enhanced {
		return AssistantName + " Pro"
	}
	return AssistantName
}

// SystemPrompt renders the system message for one request. Enhanced
// identities get the richer variant that also states the personality mode.
func SystemPrompt(enhanced bool, s settings.Settings, now time.Time) string {
	data := promptData{
		Name:        DisplayName(enhanced),
		Enhanced:    enhanced,
		Style:       s.ResponseStyle,
		StyleHint:   styleGuidance[s.ResponseStyle],
		Personality: s.PersonalityMode,
		Memory:      yesNo(s.MemoryEnabled),
		FollowUps:   yesNo(s.FollowUpsEnabled),
		Now:         now.UTC().Format("2006-01-02 15:04 MST"),
	}
	if data.StyleHint == "" {
		data.StyleHint = styleGuidance[settings.StyleBalanced]
	}

	var b strings.Builder
	if err := systemPromptTmpl.Execute(&b, data); err != nil {
		// Only reachable through a template bug; fall back to the identity line.
		return "You are " + data.Name + ", a helpful AI assistant."
	}
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
