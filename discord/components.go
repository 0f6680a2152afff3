package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/interview"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
	"github.com/korjavin/intakebot/review"
)

// Custom ids of buttons, menus and modals. Prefixed ids carry an
// application id, a user id or a category name after the prefix.
const (
	idCategorySelect = "application_select"
	idReason         = "reason"

	prefixAnswerYes     = "answer_yes_"
	prefixAnswerNo      = "answer_no_"
	prefixAccept        = "app_accept_"
	prefixDeny          = "app_deny_"
	prefixHistory       = "app_history_"
	prefixTicket        = "app_ticket_"
	prefixReviewAccept  = "review_accept_"
	prefixReviewDeny    = "review_deny_"
	prefixEditQuestions = "edit_questions_"
)

func questionInputID(number int) string {
	return fmt.Sprintf("question_%d", number)
}

// answerID tags a yes/no button with the zero-based question it belongs to
func answerID(prefix string, index int) string {
	return prefix + strconv.Itoa(index)
}

// parseAnswerID returns the question index and choice of a yes/no button
func parseAnswerID(id string) (index int, yes bool, ok bool) {
	rest, yes := strings.CutPrefix(id, prefixAnswerYes)
	if !yes {
		if rest, ok = strings.CutPrefix(id, prefixAnswerNo); !ok {
			return 0, false, false
		}
	}
	index, err := strconv.Atoi(rest)
	if err != nil || index < 0 {
		return 0, false, false
	}
	return index, yes, true
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	id := i.MessageComponentData().CustomID
	slog.Debug("component pressed", "custom_id", id, "guild", i.GuildID, "user", userID(i))

	switch {
	case strings.HasPrefix(id, prefixAnswerYes) || strings.HasPrefix(id, prefixAnswerNo):
		if index, yes, ok := parseAnswerID(id); ok {
			b.onChoice(ctx, i, index, yes)
		}
	case id == idCategorySelect:
		b.onCategorySelect(ctx, i)
	case strings.HasPrefix(id, prefixAccept):
		b.onReviewButton(ctx, i, models.ActionAccept, strings.TrimPrefix(id, prefixAccept))
	case strings.HasPrefix(id, prefixDeny):
		b.onReviewButton(ctx, i, models.ActionDeny, strings.TrimPrefix(id, prefixDeny))
	case strings.HasPrefix(id, prefixHistory):
		b.onHistory(ctx, i, strings.TrimPrefix(id, prefixHistory))
	case strings.HasPrefix(id, prefixTicket):
		b.onTicket(ctx, i, strings.TrimPrefix(id, prefixTicket))
	}
}

func (b *Bot) handleModal(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	switch {
	case strings.HasPrefix(data.CustomID, prefixReviewAccept):
		b.onReviewSubmit(ctx, i, models.ActionAccept, strings.TrimPrefix(data.CustomID, prefixReviewAccept))
	case strings.HasPrefix(data.CustomID, prefixReviewDeny):
		b.onReviewSubmit(ctx, i, models.ActionDeny, strings.TrimPrefix(data.CustomID, prefixReviewDeny))
	case strings.HasPrefix(data.CustomID, prefixEditQuestions):
		b.onEditQuestions(ctx, i, strings.TrimPrefix(data.CustomID, prefixEditQuestions))
	}
}

// onChoice answers the yes/no question at index. The engine rejects a press
// for any question but the current one; the buttons are removed once the
// answer is taken.
func (b *Bot) onChoice(ctx context.Context, i *discordgo.InteractionCreate, index int, yes bool) {
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		slog.Warn("failed to acknowledge answer", "err", err)
		return
	}

	user := userID(i)
	outcome, err := b.engine.HandleChoice(ctx, user, index, yes)
	if err != nil {
		slog.Debug("choice rejected", "user", user, "err", err)
		b.followup(i, platform.Describe(err))
		return
	}
	if outcome == interview.OutcomeIgnored {
		return
	}

	answer := "No"
	if yes {
		answer = "Yes"
	}
	edit := &discordgo.WebhookEdit{Components: &[]discordgo.MessageComponent{}}
	if i.Message != nil && len(i.Message.Embeds) > 0 {
		embed := *i.Message.Embeds[0]
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Answered: " + answer}
		edit.Embeds = &[]*discordgo.MessageEmbed{&embed}
	}
	if _, err := b.s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("failed to clear answer buttons", "user", user, "err", err)
	}
}

func (b *Bot) onCategorySelect(ctx context.Context, i *discordgo.InteractionCreate) {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	if !b.deferReply(i) {
		return
	}

	err := b.engine.Start(ctx, interview.StartRequest{
		GuildID:      i.GuildID,
		GuildName:    b.guildName(i.GuildID),
		Member:       member(i),
		CategoryName: values[0],
	})
	if err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	b.editReply(i, "✅ Check your DMs! I've sent you the first question.")
}

// onReviewButton asks the reviewer for a reason before anything is decided
func (b *Bot) onReviewButton(ctx context.Context, i *discordgo.InteractionCreate, action models.Action, applicationID string) {
	if _, err := b.review.Authorize(ctx, i.GuildID, member(i)); err != nil {
		b.respondError(i, err)
		return
	}

	prefix, title := prefixReviewAccept, "Accept Application"
	if action == models.ActionDeny {
		prefix, title = prefixReviewDeny, "Deny Application"
	}
	b.respondModal(i, prefix+applicationID, title, discordgo.TextInput{
		CustomID:    idReason,
		Label:       "Reason",
		Style:       discordgo.TextInputParagraph,
		Placeholder: "Explain the decision to the applicant",
		Required:    true,
		MaxLength:   1000,
	})
}

func (b *Bot) onReviewSubmit(ctx context.Context, i *discordgo.InteractionCreate, action models.Action, applicationID string) {
	if !b.deferReply(i) {
		return
	}

	res, err := b.review.SubmitReview(ctx, review.ReviewRequest{
		GuildID:       i.GuildID,
		GuildName:     b.guildName(i.GuildID),
		ApplicationID: applicationID,
		Action:        action,
		Reviewer:      member(i),
		Reason:        modalValue(i.ModalSubmitData(), idReason),
	})
	if err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	b.editReply(i, reviewSummary(res))
}

func reviewSummary(res *review.Result) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%s Application %s.", statusEmoji(res.Application.Status), res.Application.Status))
	if !res.Notified {
		lines = append(lines, "⚠️ Could not send a DM to the applicant.")
	}
	if res.TicketClosed {
		lines = append(lines, "🎫 The applicant's ticket was closed.")
	}
	if len(res.GrantedRoles) > 0 {
		lines = append(lines, "Roles assigned: "+roleMentions(res.GrantedRoles))
	}
	for roleID, err := range res.FailedRoles {
		lines = append(lines, fmt.Sprintf("⚠️ Could not assign <@&%s>: %s", roleID, platform.Describe(err)))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) onHistory(ctx context.Context, i *discordgo.InteractionCreate, applicantID string) {
	if !b.deferReply(i) {
		return
	}
	if _, err := b.review.Authorize(ctx, i.GuildID, member(i)); err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	apps, err := b.review.History(ctx, i.GuildID, applicantID)
	if err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	if len(apps) == 0 {
		b.editReply(i, "No application history found for this user.")
		return
	}
	b.editReply(i, historyText(applicantID, apps))
}

func (b *Bot) onTicket(ctx context.Context, i *discordgo.InteractionCreate, applicationID string) {
	if !b.deferReply(i) {
		return
	}
	ch, err := b.review.OpenTicket(ctx, i.GuildID, applicationID, member(i))
	if errx.IsType(err, errx.TypeConflict) && ch.ID != "" {
		b.editReply(i, "❌ A ticket already exists: "+channelMention(ch.ID))
		return
	}
	if err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	b.editReply(i, "✅ Ticket created: "+channelMention(ch.ID))
}

func (b *Bot) onEditQuestions(ctx context.Context, i *discordgo.InteractionCreate, category string) {
	if !b.deferReply(i) {
		return
	}

	data := i.ModalSubmitData()
	texts := make([]string, 0, len(data.Components))
	for n := 1; n <= len(data.Components); n++ {
		texts = append(texts, modalValue(data, questionInputID(n)))
	}

	count, err := b.admin.EditQuestions(ctx, i.GuildID, member(i), category, texts)
	if err != nil {
		b.editReply(i, platform.Describe(err))
		return
	}
	b.editReply(i, fmt.Sprintf("✅ Questions for **%s** updated. The category now has %d questions.", category, count))
}

// modalValue returns the submitted value of the text input with customID
func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		r, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range r.Components {
			if in, ok := c.(*discordgo.TextInput); ok && in.CustomID == customID {
				return in.Value
			}
		}
	}
	return ""
}
