package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

func noticeEmbed(n platform.Notice) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		Color:       colorBlurple,
	}
	switch n.Kind {
	case platform.KindSuccess:
		e.Color = colorGreen
	case platform.KindWarning:
		e.Color = colorOrange
	case platform.KindError:
		e.Color = colorRed
	}
	if n.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: n.Footer}
	}
	return e
}

// applicationText renders the staff-facing body of an application
func applicationText(app models.Application) string {
	var b strings.Builder
	b.WriteString("**New Application Received!**\n\n")
	fmt.Fprintf(&b, "**Applicant:** <@%s> (%s)\n", app.UserID, app.UserID)
	fmt.Fprintf(&b, "**Category:** %s\n", app.Category)
	fmt.Fprintf(&b, "**Submitted:** <t:%d:R>\n\n", app.Timestamp.Unix())
	for i, a := range app.Answers {
		answer := a.Answer
		if strings.TrimSpace(answer) == "" {
			answer = "No answer"
		}
		fmt.Fprintf(&b, "**%d. %s**\n%s\n\n", i+1, a.Question, answer)
	}
	return b.String()
}

func reviewButtons(app models.Application) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Accept", Style: discordgo.SuccessButton, CustomID: prefixAccept + app.ID, Emoji: &discordgo.ComponentEmoji{Name: "✅"}},
			discordgo.Button{Label: "Deny", Style: discordgo.DangerButton, CustomID: prefixDeny + app.ID, Emoji: &discordgo.ComponentEmoji{Name: "❌"}},
			discordgo.Button{Label: "History", Style: discordgo.SecondaryButton, CustomID: prefixHistory + app.UserID, Emoji: &discordgo.ComponentEmoji{Name: "📋"}},
			discordgo.Button{Label: "Open Ticket", Style: discordgo.PrimaryButton, CustomID: prefixTicket + app.ID, Emoji: &discordgo.ComponentEmoji{Name: "🎫"}},
		}},
	}
}

// footerID reads the application id back out of a posted part
func footerID(m *discordgo.Message) string {
	if len(m.Embeds) == 0 || m.Embeds[0].Footer == nil {
		return ""
	}
	text, ok := strings.CutPrefix(m.Embeds[0].Footer.Text, "ID: ")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(text, " ")
	return id
}

func statusEmoji(s models.Status) string {
	switch s {
	case models.StatusAccepted:
		return "✅"
	case models.StatusDenied:
		return "❌"
	default:
		return "⏳"
	}
}

func historyText(userID string, apps []models.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Application History for <@%s>**\n\n", userID)
	for i, app := range apps {
		fmt.Fprintf(&b, "%d. %s **%s** - <t:%d:D>\n", i+1, statusEmoji(app.Status), app.Category, app.Timestamp.Unix())
		fmt.Fprintf(&b, "   Status: %s\n", app.Status)
		if app.ReviewedBy != "" {
			fmt.Fprintf(&b, "   Reviewed by: <@%s>\n", app.ReviewedBy)
		}
		b.WriteString("\n")
	}
	return platform.Truncate(b.String(), chunkSize)
}

func pendingText(guildID string, apps []models.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Total Pending Applications: %d**\n\n", len(apps))
	for i, app := range apps {
		link := "Link unavailable"
		if l := app.Message.Link(guildID); l != "" {
			link = fmt.Sprintf("[Jump to Message](%s)", l)
		}
		fmt.Fprintf(&b, "%d. **%s** - <@%s> (ID: `%s`)\n   %s\n\n", i+1, app.Category, app.UserID, app.ID, link)
	}
	text := b.String()
	if len(text) > 4000 {
		text = text[:chunkSize] + "\n... and more pending applications."
	}
	return text
}

func configText(cfg *models.GuildConfig) string {
	var b strings.Builder
	b.WriteString("**Server Configuration**\n\n")
	fmt.Fprintf(&b, "📋 **Log Channel:** %s\n", channelMention(cfg.LogChannelID))
	fmt.Fprintf(&b, "🎫 **Ticket Category:** %s\n", channelMention(cfg.TicketCategoryID))
	fmt.Fprintf(&b, "⏰ **Cooldown:** %d hours\n", cfg.CooldownHours)
	fmt.Fprintf(&b, "👑 **Admin Roles:** %s\n\n", roleMentions(cfg.AdminRoleIDs))
	fmt.Fprintf(&b, "**Application Categories:** (%d)\n\n", len(cfg.Categories))
	for _, c := range cfg.Categories {
		fmt.Fprintf(&b, "**• %s**\n", c.Name)
		fmt.Fprintf(&b, "  Description: %s\n", c.Description)
		fmt.Fprintf(&b, "  Auto-roles: %s\n", roleMentions(c.RoleIDs))
		fmt.Fprintf(&b, "  Questions: %d\n\n", len(c.Questions))
	}
	return platform.Truncate(b.String(), 2000)
}

func questionsText(c *models.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Questions for \"%s\"** (%d/%d)\n\n", c.Name, len(c.Questions), models.MaxQuestions)
	for i, q := range c.Questions {
		emoji := "📝"
		if q.Type == models.QuestionYesNo {
			emoji = "✅"
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, emoji, q.Text)
	}
	return b.String()
}

// panelMessage is the public panel: a description of every category and a
// select menu holding the first 25
func panelMessage(categories []models.Category) *discordgo.MessageSend {
	menu := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    idCategorySelect,
		Placeholder: "Select an application type...",
	}
	for n, c := range categories {
		if n == 25 {
			break
		}
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{
			Label:       platform.Truncate(c.Name, 100),
			Value:       c.Name,
			Description: platform.Truncate(c.Description, 100),
			Emoji:       &discordgo.ComponentEmoji{Name: "📝"},
		})
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "📋 Applications",
			Description: panelText(categories),
			Color:       colorBlurple,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
		},
	}
}

func panelText(categories []models.Category) string {
	var b strings.Builder
	b.WriteString("**Welcome to our Application System!**\n\nSelect the type of application you wish to submit from the dropdown menu below.\n\n**Available Positions:**\n\n")
	for i, c := range categories {
		fmt.Fprintf(&b, "**%d. %s**\n%s\n\n", i+1, c.Name, c.Description)
	}
	return platform.Truncate(b.String(), chunkSize)
}

func channelMention(id string) string {
	if id == "" {
		return "Not set"
	}
	return "<#" + id + ">"
}

func roleMentions(ids []string) string {
	if len(ids) == 0 {
		return "None"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<@&" + id + ">"
	}
	return strings.Join(out, ", ")
}
