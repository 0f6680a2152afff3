package platform

import (
	"fmt"

	"github.com/korjavin/intakebot/errx"
)

// Describe turns an error into the text shown to the member who caused it
func Describe(err error) string {
	e, ok := errx.As(err)
	if !ok {
		return "❌ An error occurred!"
	}

	switch e.Type {
	case errx.TypeNotConfigured:
		if e.Code == "NOT_CONFIGURED" {
			return "❌ Please run `/setup` first to configure the bot!"
		}
		return "❌ " + capitalize(e.Message) + "."
	case errx.TypeCooldown:
		return fmt.Sprintf("⏰ You must wait %v more hour(s) before submitting another application.", e.Detail("hours_remaining"))
	case errx.TypeDeliveryBlocked:
		return "❌ I couldn't send you a DM. Please enable DMs from server members and try again."
	case errx.TypeAlreadyReviewed:
		return fmt.Sprintf("ℹ️ This application was already reviewed (%v).", e.Detail("status"))
	case errx.TypePersistence, errx.TypeInternal:
		return "❌ Something went wrong while saving. Nothing was lost, please try again."
	case errx.TypeNotFound:
		for _, key := range []string{"category", "application_id", "role_id"} {
			if v := e.Detail(key); v != nil {
				return fmt.Sprintf("❌ %s: %v", capitalize(e.Message), v)
			}
		}
		if e.Detail("number") != nil {
			return fmt.Sprintf("❌ %s! The category has %v question(s).", capitalize(e.Message), e.Detail("questions"))
		}
		return "❌ " + capitalize(e.Message) + "."
	default:
		return "❌ " + capitalize(e.Message) + "."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
