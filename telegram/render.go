package telegram

import (
	"fmt"
	"strings"

	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

// Texts use **bold** markers. markdown turns them into MarkdownV2 and plain
// drops them for the fallback.

func noticeText(n platform.Notice) string {
	var b strings.Builder
	if n.Title != "" {
		b.WriteString("**" + n.Title + "**\n\n")
	}
	b.WriteString(n.Body)
	if n.Footer != "" {
		b.WriteString("\n\n" + n.Footer)
	}
	return b.String()
}

func applicationText(app models.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **New %s application**\n\n", app.Category)
	fmt.Fprintf(&b, "Applicant: %s (%s)\n", app.UserDisplayName, app.UserID)
	fmt.Fprintf(&b, "Submitted: %s\n", app.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "ID: %s\n\n", app.ID)
	for i, a := range app.Answers {
		answer := a.Answer
		if strings.TrimSpace(answer) == "" {
			answer = "No answer"
		}
		fmt.Fprintf(&b, "**%d. %s**\n%s\n\n", i+1, a.Question, answer)
	}
	fmt.Fprintf(&b, "Review with /accept %s <reason> or /deny %s <reason> in the group.", app.ID, app.ID)
	return b.String()
}

func historyText(userID string, apps []models.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Application history for %s**\n\n", userID)
	for i, app := range apps {
		fmt.Fprintf(&b, "%d. %s (%s) - %s\n", i+1, app.Category, app.Status, app.Timestamp.UTC().Format("2006-01-02"))
		if app.Reason != "" {
			fmt.Fprintf(&b, "   Reason: %s\n", app.Reason)
		}
	}
	return b.String()
}

func pendingText(apps []models.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Total pending applications: %d**\n\n", len(apps))
	for i, app := range apps {
		fmt.Fprintf(&b, "%d. %s - %s\n   ID: %s\n", i+1, app.Category, app.UserDisplayName, app.ID)
	}
	return b.String()
}

func configText(cfg *models.GuildConfig) string {
	var b strings.Builder
	b.WriteString("**Group configuration**\n\n")
	fmt.Fprintf(&b, "Log chat: %s\n", cfg.LogChannelID)
	fmt.Fprintf(&b, "Cooldown: %d hours\n\n", cfg.CooldownHours)
	fmt.Fprintf(&b, "**Categories (%d)**\n", len(cfg.Categories))
	for _, c := range cfg.Categories {
		fmt.Fprintf(&b, "• %s: %d questions", c.Name, len(c.Questions))
		if len(c.RoleIDs) > 0 {
			fmt.Fprintf(&b, ", invites to %s", strings.Join(c.RoleIDs, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func questionsText(c *models.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Questions for %s** (%d/%d)\n\n", c.Name, len(c.Questions), models.MaxQuestions)
	for i, q := range c.Questions {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, q.Type, q.Text)
	}
	return b.String()
}

// markdown converts **bold** markers to MarkdownV2 and escapes everything else
func markdown(text string) string {
	parts := strings.Split(text, "**")
	if len(parts)%2 == 0 {
		return escapeMarkdown(plain(text))
	}
	for i := range parts {
		parts[i] = escapeMarkdown(parts[i])
	}
	return strings.Join(parts, "*")
}

func plain(text string) string {
	return strings.ReplaceAll(text, "**", "")
}

// escapeMarkdown escapes special characters for Telegram's MarkdownV2 format
func escapeMarkdown(text string) string {
	// Characters that need escaping in MarkdownV2: _*[]()~`>#+-=|{}.!\
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune("\\_*[]()~`>#+-=|{}.!", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
