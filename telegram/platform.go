package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

const (
	// Telegram caps a message at 4096 characters; MarkdownV2 escapes need room
	messageLimit = 3000

	// inviteTTL is how long a role invite link stays valid
	inviteTTL = 7 * 24 * time.Hour

	callbackAnswer  = "answer:"
	callbackApply   = "apply:"
	callbackHistory = "history:"
)

// Client is the part of the Bot API the bot uses. *tgbotapi.BotAPI implements it.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Platform implements platform.Platform on Telegram. A guild is a group chat
// and a role is another chat the member is invited to with a single-use link.
// Telegram bots cannot create private channels, so tickets are unsupported.
type Platform struct {
	api Client

	mu sync.Mutex
	// continuation parts of staff posts, keyed by the first part
	parts map[models.MessageRef][]int
}

func NewPlatform(api Client) *Platform {
	return &Platform{api: api, parts: make(map[models.MessageRef][]int)}
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID string, n platform.Notice) error {
	chatID, err := parseChatID(userID)
	if err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	if err := ctx.Err(); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	if _, err := p.deliver(chatID, noticeText(n), nil); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	return nil
}

func (p *Platform) PresentQuestion(ctx context.Context, userID string, q models.Question, number, total int) error {
	chatID, err := parseChatID(userID)
	if err != nil {
		return platform.DeliveryBlocked(userID, err)
	}

	var (
		hint   = "Type your answer below."
		markup any
	)
	if q.Type == models.QuestionYesNo {
		hint = "Tap a button below."
		markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes", answerData(true, number-1)),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", answerData(false, number-1)),
		))
	}
	if err := ctx.Err(); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	text := fmt.Sprintf("**Question %d/%d**\n\n%s\n\n%s", number, total, q.Text, hint)
	if _, err := p.deliver(chatID, text, markup); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	return nil
}

// PostAwaitingReview posts the application in parts. The first part carries
// the history button and is the one the record points at.
func (p *Platform) PostAwaitingReview(ctx context.Context, guildID, channelID string, app models.Application) (models.MessageRef, error) {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return models.MessageRef{}, err
	}

	var (
		first int
		more  []int
	)
	for i, part := range platform.Chunk(applicationText(app), messageLimit) {
		var markup any
		if i == 0 {
			markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📋 History", historyData(guildID, app.UserID)),
			))
		}

		sent, err := p.deliver(chatID, part, markup)
		if err != nil {
			for _, id := range append(more, first) {
				if id != 0 {
					p.deletePart(chatID, id)
				}
			}
			return models.MessageRef{}, classify(err, "post in the log chat")
		}
		if i == 0 {
			first = sent.MessageID
		} else {
			more = append(more, sent.MessageID)
		}
	}

	ref := models.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(first)}
	if len(more) > 0 {
		p.mu.Lock()
		p.parts[ref] = more
		p.mu.Unlock()
	}
	return ref, nil
}

// MarkReviewed replaces the first part with the decision; editing the text
// also drops its keyboard.
func (p *Platform) MarkReviewed(ctx context.Context, ref models.MessageRef, app models.Application, reviewerName string) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	p.forget(ref)

	status := "❌ Denied"
	if app.Status == models.StatusAccepted {
		status = "✅ Accepted"
	}
	text := fmt.Sprintf("📋 %s application from %s\nID: %s\n\nStatus: %s\nReviewed by: %s\nReason: %s",
		app.Category, app.UserDisplayName, app.ID, status, reviewerName, app.Reason)
	if _, err := p.api.Send(tgbotapi.NewEditMessageText(chatID, msgID, platform.Truncate(text, messageLimit))); err != nil {
		return classify(err, "edit the application post")
	}
	return nil
}

// DeleteMessage removes the post and the continuation parts it sent
func (p *Platform) DeleteMessage(ctx context.Context, ref models.MessageRef) error {
	chatID, msgID, err := parseRef(ref)
	if err != nil {
		return err
	}
	for _, id := range p.forget(ref) {
		p.deletePart(chatID, id)
	}
	if _, err := p.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return classify(err, "delete the application post")
	}
	return nil
}

// deletePart removes one message of a staff post. Failures only leave a
// stray message behind, so they are logged.
func (p *Platform) deletePart(chatID int64, msgID int) {
	if _, err := p.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		slog.Warn("failed to delete application post part", "chat", chatID, "message", msgID, "err", err)
	}
}

func (p *Platform) forget(ref models.MessageRef) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.parts[ref]
	delete(p.parts, ref)
	return ids
}

func (p *Platform) SendChannelMessage(ctx context.Context, channelID string, n platform.Notice) error {
	chatID, err := parseChatID(channelID)
	if err != nil {
		return err
	}
	if _, err := p.deliver(chatID, noticeText(n), nil); err != nil {
		return classify(err, "send messages in that chat")
	}
	return nil
}

// GrantRole sends userID a single-use invite link to the chat roleID
func (p *Platform) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	roleChat, err := strconv.ParseInt(roleID, 10, 64)
	if err != nil {
		return platform.RoleNotFound(roleID)
	}
	resp, err := p.api.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: roleChat},
		Name:        "application " + userID,
		ExpireDate:  int(time.Now().Add(inviteTTL).Unix()),
		MemberLimit: 1,
	})
	if err != nil {
		if apiCode(err) == 400 {
			return platform.RoleNotFound(roleID)
		}
		return classify(err, "create invite links")
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return errx.Wrap(err, "decode invite link", errx.TypeInternal)
	}
	return p.SendDirectMessage(ctx, userID, platform.Notice{
		Title: "You have been granted access",
		Body:  "Join with this link (valid for one use):\n" + link.InviteLink,
		Kind:  platform.KindSuccess,
	})
}

func (p *Platform) CreatePrivateChannel(ctx context.Context, guildID, parentID, name string, visibleTo platform.Audience) (platform.ChannelRef, error) {
	return platform.ChannelRef{}, platform.Unsupported("ticket channels")
}

// FindChannel never finds a ticket since none can be created
func (p *Platform) FindChannel(ctx context.Context, guildID, parentID, name string) (platform.ChannelRef, bool, error) {
	return platform.ChannelRef{}, false, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return platform.Unsupported("ticket channels")
}

// deliver sends text as MarkdownV2 and retries as plain text when Telegram
// cannot parse the formatting
func (p *Platform) deliver(chatID int64, text string, markup any) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, markdown(text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = markup

	sent, err := p.api.Send(msg)
	if err != nil && apiCode(err) == 400 && strings.Contains(err.Error(), "can't parse entities") {
		msg.Text = plain(text)
		msg.ParseMode = ""
		sent, err = p.api.Send(msg)
	}
	return sent, err
}

func parseChatID(id string) (int64, error) {
	chatID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, errx.Wrap(err, "invalid chat id", errx.TypeValidation).WithDetail("chat_id", id)
	}
	return chatID, nil
}

func parseRef(ref models.MessageRef) (int64, int, error) {
	chatID, err := parseChatID(ref.ChannelID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, errx.Wrap(err, "invalid message id", errx.TypeValidation).WithDetail("message_id", ref.MessageID)
	}
	return chatID, msgID, nil
}

// apiCode returns the HTTP-style code of a Bot API failure, or 0
func apiCode(err error) int {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// classify maps a Bot API failure onto the error taxonomy
func classify(err error, action string) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return errx.Wrap(err, "could not "+action, errx.TypeDeliveryBlocked)
	}
	switch {
	case apiErr.Code == 403, strings.Contains(apiErr.Message, "not enough rights"):
		return platform.PermissionDenied(action, err)
	case apiErr.Code == 400 && strings.Contains(apiErr.Message, "not found"):
		return errx.Wrap(err, "could not "+action, errx.TypeNotFound)
	default:
		return errx.Wrap(err, "could not "+action, errx.TypeDeliveryBlocked)
	}
}

// answerData tags a yes/no button with the zero-based question it belongs to:
// "answer:yes:3"
func answerData(yes bool, index int) string {
	choice := "no"
	if yes {
		choice = "yes"
	}
	return callbackAnswer + choice + ":" + strconv.Itoa(index)
}

func parseAnswerData(data string) (index int, yes bool, ok bool) {
	choice, rest, found := strings.Cut(strings.TrimPrefix(data, callbackAnswer), ":")
	if !found || (choice != "yes" && choice != "no") {
		return 0, false, false
	}
	index, err := strconv.Atoi(rest)
	if err != nil || index < 0 {
		return 0, false, false
	}
	return index, choice == "yes", true
}

func historyData(guildID, userID string) string {
	return callbackHistory + guildID + ":" + userID
}
