package nlp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFollowUps(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  []string
	}{
		{
			name:  "programming",
			reply: "Here is some code that reverses a list.",
			want: []string{
				"Would you like help with a specific programming language?",
				"Do you want to see some code examples?",
			},
		},
		{
			name:  "two topics truncated to three",
			reply: "Planning a trip? Learn a few phrases first.",
			want: []string{
				"What's your budget for this trip?",
				"How long are you planning to stay?",
				"What's your current level of knowledge on this topic?",
			},
		},
		{
			name:  "question only",
			reply: "Did that answer it?",
			want:  []string{"Is there anything else you'd like to know about this?"},
		},
		{
			name:  "long reply",
			reply: strings.Repeat("a", 501),
			want:  []string{"Would you like me to elaborate on any specific part?"},
		},
		{
			name:  "nothing matches",
			reply: "Sure.",
			want:  nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FollowUps(tc.reply, true)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("FollowUps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFollowUps_Disabled(t *testing.T) {
	if got := FollowUps("some code?", false); got != nil {
		t.Fatalf("expected nil when disabled, got %v", got)
	}
}

func TestFollowUps_NeverMoreThanThree(t *testing.T) {
	reply := "code recipe travel learn? " + strings.Repeat("x", 600)
	if got := FollowUps(reply, true); len(got) != MaxFollowUps {
		t.Fatalf("expected %d suggestions, got %d", MaxFollowUps, len(got))
	}
}
