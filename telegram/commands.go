package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/review"
)

// splitArgs splits "a | b | c" command arguments
func splitArgs(args string) []string {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func usage(text string) error {
	return errx.New(errx.TypeValidation, "USAGE", "usage: "+text)
}

func (b *Bot) setup(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	logChat := guildID
	if args != "" {
		if _, err := strconv.ParseInt(args, 10, 64); err != nil {
			return "", usage("/setup [log chat id]")
		}
		logChat = args
	}
	cfg, err := b.admin.Setup(ctx, guildID, m, logChat, chatAdministrators)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ **Setup complete**\n\nApplications will be posted in chat %s. Group admins can review them.\nCreated %d default categories. Send /panel to post the application panel.",
		cfg.LogChannelID, len(cfg.Categories)), nil
}

// panel posts one button per category. Buttons carry the category index
// since callback data is limited to 64 bytes.
func (b *Bot) panel(ctx context.Context, chatID int64, guildID string, m models.Member) {
	if err := b.admin.Authorize(ctx, guildID, m); err != nil {
		b.sendMessage(chatID, describe(err))
		return
	}
	categories, err := b.admin.Panel(ctx, guildID)
	if err != nil {
		b.sendMessage(chatID, describe(err))
		return
	}

	var (
		text strings.Builder
		rows [][]tgbotapi.InlineKeyboardButton
	)
	text.WriteString("📋 **Applications**\n\nPick the position you want to apply for.\n\n")
	for i, c := range categories {
		fmt.Fprintf(&text, "**%d. %s**\n%s\n\n", i+1, c.Name, c.Description)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 "+c.Name, callbackApply+strconv.Itoa(i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, markdown(text.String()))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		slog.Warn("failed to post panel", "chat", chatID, "err", err)
	}
}

func (b *Bot) addCategory(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	parts := splitArgs(args)
	if len(parts) < 2 || parts[0] == "" {
		return "", usage("/addcategory name | description | invite chat ids")
	}
	var roles []string
	if len(parts) > 2 {
		roles = strings.FieldsFunc(parts[2], func(r rune) bool { return r == ',' || r == ' ' })
	}
	c, err := b.admin.AddCategory(ctx, guildID, m, parts[0], parts[1], roles)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Category **%s** created with %d starter questions.", c.Name, len(c.Questions)), nil
}

func (b *Bot) addQuestion(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	parts := splitArgs(args)
	if len(parts) < 2 {
		return "", usage("/addquestion category | question | yes_no")
	}
	typ := models.QuestionText
	if len(parts) > 2 && parts[2] != "" {
		typ = models.QuestionType(strings.ToLower(parts[2]))
	}
	count, err := b.admin.AddQuestion(ctx, guildID, m, parts[0], parts[1], typ)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Question added to **%s** (%d/%d).", parts[0], count, models.MaxQuestions), nil
}

func (b *Bot) removeQuestion(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	parts := splitArgs(args)
	if len(parts) != 2 {
		return "", usage("/removequestion category | number")
	}
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", usage("/removequestion category | number")
	}
	q, err := b.admin.RemoveQuestion(ctx, guildID, m, parts[0], number)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Removed question %d from **%s**:\n%s", number, parts[0], q.Text), nil
}

// editQuestions takes the category on the first line and one question per line after it
func (b *Bot) editQuestions(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	lines := strings.Split(args, "\n")
	category := strings.TrimSpace(lines[0])
	if category == "" || len(lines) < 2 {
		return "", usage("/editquestions category, then one question per line")
	}
	count, err := b.admin.EditQuestions(ctx, guildID, m, category, lines[1:])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Questions for **%s** updated. The category now has %d questions.", category, count), nil
}

func (b *Bot) setLogChat(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	if _, err := strconv.ParseInt(args, 10, 64); err != nil {
		return "", usage("/setlogchat chat id")
	}
	if err := b.admin.SetLogChannel(ctx, guildID, m, args); err != nil {
		return "", err
	}
	return "✅ Applications will now be posted in chat " + args + ".", nil
}

func (b *Bot) setCooldown(ctx context.Context, guildID string, m models.Member, args string) (string, error) {
	hours, err := strconv.Atoi(args)
	if err != nil {
		return "", usage("/setcooldown hours")
	}
	if err := b.admin.SetCooldown(ctx, guildID, m, hours); err != nil {
		return "", err
	}
	if hours == 0 {
		return "✅ Cooldown disabled.", nil
	}
	return fmt.Sprintf("✅ Members must now wait %d hours between applications.", hours), nil
}

func (b *Bot) pending(ctx context.Context, guildID string, m models.Member) (string, error) {
	if _, err := b.review.Authorize(ctx, guildID, m); err != nil {
		return "", err
	}
	apps, err := b.review.Pending(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "✅ No pending applications!", nil
	}
	return pendingText(apps), nil
}

func (b *Bot) history(ctx context.Context, guildID string, m models.Member, applicantID string) (string, error) {
	if applicantID == "" {
		return "", usage("/history user id")
	}
	if _, err := b.review.Authorize(ctx, guildID, m); err != nil {
		return "", err
	}
	apps, err := b.review.History(ctx, guildID, applicantID)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "No application history found for this user.", nil
	}
	return historyText(applicantID, apps), nil
}

// decide handles "/accept id reason" and "/deny id reason"
func (b *Bot) decide(ctx context.Context, chat *tgbotapi.Chat, m models.Member, action models.Action, args string) (string, error) {
	id, reason, _ := strings.Cut(args, " ")
	if id == "" {
		return "", usage(fmt.Sprintf("/%s id reason", action))
	}
	res, err := b.review.SubmitReview(ctx, review.ReviewRequest{
		GuildID:       strconv.FormatInt(chat.ID, 10),
		GuildName:     chat.Title,
		ApplicationID: id,
		Action:        action,
		Reviewer:      m,
		Reason:        reason,
	})
	if err != nil {
		return "", err
	}

	lines := []string{fmt.Sprintf("Application %s %s.", res.Application.ID, res.Application.Status)}
	if !res.Notified {
		lines = append(lines, "⚠️ Could not send a private message to the applicant.")
	}
	if len(res.GrantedRoles) > 0 {
		lines = append(lines, fmt.Sprintf("Invite links sent for %d chat(s).", len(res.GrantedRoles)))
	}
	for chatID, err := range res.FailedRoles {
		lines = append(lines, fmt.Sprintf("⚠️ Could not invite to %s: %s", chatID, plain(describe(err))))
	}
	return strings.Join(lines, "\n"), nil
}
