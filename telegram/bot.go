// Package telegram runs the bot on Telegram. Group chats play the part of
// guilds: admins configure the group with commands, members apply from a
// panel, the interview happens in the private chat with the bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/intakebot/admin"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/interview"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
	"github.com/korjavin/intakebot/review"
)

const (
	cmdStart           = "start"
	cmdHelp            = "help"
	cmdCancel          = "cancel"
	cmdSetup           = "setup"
	cmdPanel           = "panel"
	cmdAddCategory     = "addcategory"
	cmdRemoveCategory  = "removecategory"
	cmdAddQuestion     = "addquestion"
	cmdRemoveQuestion  = "removequestion"
	cmdEditQuestions   = "editquestions"
	cmdListQuestions   = "listquestions"
	cmdSetLogChat      = "setlogchat"
	cmdSetCooldown     = "setcooldown"
	cmdViewConfig      = "viewconfig"
	cmdPending         = "pending"
	cmdHistory         = "history"
	cmdAccept          = "accept"
	cmdDeny            = "deny"
	handlerTimeout     = 30 * time.Second
	chatAdministrators = "administrators"
)

// Bot represents the Telegram bot
type Bot struct {
	bot    *tgbotapi.BotAPI
	api    Client
	engine *interview.Engine
	review *review.Workflow
	admin  *admin.Service
}

// NewAPI connects to the Bot API
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// New creates a new bot instance
func New(api *tgbotapi.BotAPI, engine *interview.Engine, workflow *review.Workflow, admins *admin.Service) *Bot {
	return &Bot{
		bot:    api,
		api:    api,
		engine: engine,
		review: workflow,
		admin:  admins,
	}
}

// Start listens for updates until ctx is done
func (b *Bot) Start(ctx context.Context) {
	slog.Info("starting telegram polling", "user", b.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.From.IsBot {
		return
	}
	userID := strconv.FormatInt(message.From.ID, 10)

	if !message.IsCommand() {
		if !message.Chat.IsPrivate() {
			return
		}
		outcome, err := b.engine.HandleText(ctx, userID, message.Text)
		if err != nil {
			slog.Warn("failed to handle answer", "user", userID, "err", err)
			b.sendMessage(message.Chat.ID, describe(err))
			return
		}
		slog.Debug("private message handled", "user", userID, "outcome", outcome)
		return
	}

	command, args := message.Command(), strings.TrimSpace(message.CommandArguments())
	slog.Debug("command received", "command", command, "chat", message.Chat.ID, "user", userID)

	switch command {
	case cmdStart, cmdHelp:
		b.sendMessage(message.Chat.ID, helpText)
		return
	case cmdCancel:
		if message.Chat.IsPrivate() {
			if outcome, _ := b.engine.HandleText(ctx, userID, "cancel"); outcome == interview.OutcomeIgnored {
				b.sendMessage(message.Chat.ID, "You have no application in progress.")
			}
		}
		return
	}

	if message.Chat.IsPrivate() {
		b.sendMessage(message.Chat.ID, "❌ This command can only be used in a group.")
		return
	}

	guildID := strconv.FormatInt(message.Chat.ID, 10)
	m, err := b.member(message.Chat.ID, message.From)
	if err != nil {
		b.sendMessage(message.Chat.ID, describe(err))
		return
	}

	var reply string
	switch command {
	case cmdSetup:
		reply, err = b.setup(ctx, guildID, m, args)
	case cmdPanel:
		b.panel(ctx, message.Chat.ID, guildID, m)
		return
	case cmdAddCategory:
		reply, err = b.addCategory(ctx, guildID, m, args)
	case cmdRemoveCategory:
		err = b.admin.RemoveCategory(ctx, guildID, m, args)
		reply = fmt.Sprintf("✅ Category **%s** removed.", args)
	case cmdAddQuestion:
		reply, err = b.addQuestion(ctx, guildID, m, args)
	case cmdRemoveQuestion:
		reply, err = b.removeQuestion(ctx, guildID, m, args)
	case cmdEditQuestions:
		reply, err = b.editQuestions(ctx, guildID, m, args)
	case cmdListQuestions:
		var c *models.Category
		if c, err = b.admin.Questions(ctx, guildID, m, args); err == nil {
			reply = questionsText(c)
		}
	case cmdSetLogChat:
		reply, err = b.setLogChat(ctx, guildID, m, args)
	case cmdSetCooldown:
		reply, err = b.setCooldown(ctx, guildID, m, args)
	case cmdViewConfig:
		var cfg *models.GuildConfig
		if cfg, err = b.admin.Config(ctx, guildID, m); err == nil {
			reply = configText(cfg)
		}
	case cmdPending:
		reply, err = b.pending(ctx, guildID, m)
	case cmdHistory:
		reply, err = b.history(ctx, guildID, m, args)
	case cmdAccept:
		reply, err = b.decide(ctx, message.Chat, m, models.ActionAccept, args)
	case cmdDeny:
		reply, err = b.decide(ctx, message.Chat, m, models.ActionDeny, args)
	default:
		return
	}

	if err != nil {
		slog.Debug("command failed", "command", command, "chat", message.Chat.ID, "err", err)
		reply = describe(err)
	}
	b.sendMessage(message.Chat.ID, reply)
}

// handleCallback processes callback queries from inline buttons
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := strconv.FormatInt(callback.From.ID, 10)
	slog.Debug("callback received", "user", userID, "data", callback.Data)

	switch {
	case strings.HasPrefix(callback.Data, callbackAnswer):
		index, yes, ok := parseAnswerData(callback.Data)
		if !ok {
			b.sendCallbackResponse(callback.ID, "")
			return
		}
		b.onAnswer(ctx, callback, userID, index, yes)
	case strings.HasPrefix(callback.Data, callbackApply):
		b.onApply(ctx, callback, strings.TrimPrefix(callback.Data, callbackApply))
	case strings.HasPrefix(callback.Data, callbackHistory):
		b.onHistory(ctx, callback, strings.TrimPrefix(callback.Data, callbackHistory))
	default:
		b.sendCallbackResponse(callback.ID, "")
	}
}

// onAnswer takes a yes/no answer for the question at index and removes the
// buttons it came from
func (b *Bot) onAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery, userID string, index int, yes bool) {
	outcome, err := b.engine.HandleChoice(ctx, userID, index, yes)
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}
	b.sendCallbackResponse(callback.ID, "")
	if outcome == interview.OutcomeIgnored || callback.Message == nil {
		return
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		slog.Warn("failed to clear answer buttons", "user", userID, "err", err)
	}
}

// onApply starts an interview for the category at index on the panel
func (b *Bot) onApply(ctx context.Context, callback *tgbotapi.CallbackQuery, index string) {
	if callback.Message == nil {
		b.sendCallbackResponse(callback.ID, "")
		return
	}
	chat := callback.Message.Chat
	guildID := strconv.FormatInt(chat.ID, 10)

	categories, err := b.admin.Panel(ctx, guildID)
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 || n >= len(categories) {
		b.sendCallbackResponse(callback.ID, "❌ This panel is out of date. Ask an admin to post a new one.")
		return
	}
	m, err := b.member(chat.ID, callback.From)
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}

	err = b.engine.Start(ctx, interview.StartRequest{
		GuildID:      guildID,
		GuildName:    chat.Title,
		Member:       m,
		CategoryName: categories[n].Name,
	})
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}
	b.sendCallbackResponse(callback.ID, "✅ Check your private chat with me for the first question.")
}

func (b *Bot) onHistory(ctx context.Context, callback *tgbotapi.CallbackQuery, data string) {
	guildID, applicantID, ok := strings.Cut(data, ":")
	if !ok || callback.Message == nil {
		b.sendCallbackResponse(callback.ID, "")
		return
	}
	chatID, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		b.sendCallbackResponse(callback.ID, "")
		return
	}
	m, err := b.member(chatID, callback.From)
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}

	reply, err := b.history(ctx, guildID, m, applicantID)
	if err != nil {
		b.sendCallbackResponse(callback.ID, plain(describe(err)))
		return
	}
	b.sendCallbackResponse(callback.ID, "")
	b.sendMessage(callback.Message.Chat.ID, reply)
}

// member reads the chat member status. The chat creator is the platform
// administrator; chat admins hold the "administrators" role.
func (b *Bot) member(chatID int64, user *tgbotapi.User) (models.Member, error) {
	m := models.Member{
		UserID:      strconv.FormatInt(user.ID, 10),
		DisplayName: user.String(),
	}
	cm, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: user.ID},
	})
	if err != nil {
		return m, errx.Wrap(err, "could not read chat membership", errx.TypeInternal)
	}
	switch {
	case cm.IsCreator():
		m.Administrator = true
	case cm.IsAdministrator():
		m.RoleIDs = []string{chatAdministrators}
	}
	return m, nil
}

// sendMessage sends a text message, falling back to plain text when the
// markdown is rejected
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, markdown(text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := b.api.Send(msg); err != nil {
		slog.Debug("markdown rendering failed, falling back to plain text", "chat", chatID, "err", err)
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, plain(text))); err != nil {
			slog.Warn("failed to send message", "chat", chatID, "err", err)
		}
	}
}

// sendCallbackResponse sends a response to a callback query
func (b *Bot) sendCallbackResponse(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		slog.Warn("failed to answer callback", "err", err)
	}
}

// describe adapts error texts that mention Discord-only concepts
func describe(err error) string {
	if errx.IsType(err, errx.TypeDeliveryBlocked) {
		return "❌ I couldn't send you a private message. Open a chat with me, press Start and try again."
	}
	return platform.Describe(err)
}

const helpText = `**Application bot**

Members: tap a category on the group's application panel, then answer the questions in your private chat with me. Send /cancel to stop.

Group admins:
/setup [log chat id] set up the group
/panel post the application panel
/addcategory name | description | invite chat ids
/removecategory name
/addquestion category | question | yes_no
/removequestion category | number
/editquestions category, then one question per line
/listquestions category
/setlogchat chat id
/setcooldown hours
/viewconfig, /pending, /history user id
/accept id reason, /deny id reason`
