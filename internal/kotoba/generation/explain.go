package generation

import (
	"errors"
	"fmt"

	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
)

// Explain turns an error from Submit or Regenerate into the short notice a
// binding shows the user.
func Explain(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return rejected.Reason
	case errors.Is(err, ErrEmptyMessage):
		return "Please type a message first."
	case errors.Is(err, ErrMessageTooLong):
		return fmt.Sprintf("Messages are limited to %d characters.", MaxInputLength)
	case errors.Is(err, ErrBusy):
		return "Please wait for the current reply to finish."
	case errors.Is(err, ErrThrottled):
		return "You're sending messages too quickly. Please wait a moment."
	case errors.Is(err, ErrCanceled):
		return "Stopped."
	case errors.Is(err, ErrConversationGone):
		return "The conversation was deleted before the reply arrived."
	case errors.Is(err, ErrNoPrompt):
		return "There is no message to regenerate a reply for."
	case errors.Is(err, chat.ErrNotFound):
		return "That conversation no longer exists."
	default:
		return "Something went wrong: " + err.Error()
	}
}
