// Package discord runs the bot on Discord: slash commands, the application
// panel, direct-message interviews and the staff review buttons.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/korjavin/intakebot/admin"
	"github.com/korjavin/intakebot/interview"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
	"github.com/korjavin/intakebot/review"
)

// handlerTimeout bounds the work done for one gateway event
const handlerTimeout = 30 * time.Second

// Bot represents the Discord bot
type Bot struct {
	s      *discordgo.Session
	appID  string
	engine *interview.Engine
	review *review.Workflow
	admin  *admin.Service

	ctx context.Context
}

// NewSession creates a gateway session with the intents the bot needs
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
	return s, nil
}

// New creates a Bot. appID may be empty, in which case the bot user id is used
// to register commands.
func New(s *discordgo.Session, appID string, engine *interview.Engine, workflow *review.Workflow, admins *admin.Service) *Bot {
	return &Bot{
		s:      s,
		appID:  appID,
		engine: engine,
		review: workflow,
		admin:  admins,
		ctx:    context.Background(),
	}
}

// Open registers the event handlers and connects to the gateway. Handlers
// derive their contexts from ctx.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	b.s.AddHandler(b.onReady)
	b.s.AddHandler(b.onInteraction)
	b.s.AddHandler(b.onMessageCreate)

	if err := b.s.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway
func (b *Bot) Close() error {
	return b.s.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := b.appID
	if appID == "" {
		appID = r.User.ID
	}

	defs := make([]*discordgo.ApplicationCommand, len(commands))
	for i, c := range commands {
		defs[i] = c.def
	}
	if _, err := s.ApplicationCommandBulkOverwrite(appID, "", defs); err != nil {
		slog.Error("failed to register commands", "err", err)
		return
	}
	slog.Info("discord bot ready", "user", r.User.String(), "guilds", len(r.Guilds), "commands", len(defs))
}

// onMessageCreate feeds direct messages into the applicant's interview
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != "" {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	outcome, err := b.engine.HandleText(ctx, m.Author.ID, m.Content)
	if err != nil {
		slog.Warn("failed to handle answer", "user", m.Author.ID, "err", err)
		if _, err := s.ChannelMessageSend(m.ChannelID, platform.Describe(err), discordgo.WithContext(ctx)); err != nil {
			slog.Warn("failed to report error to applicant", "user", m.Author.ID, "err", err)
		}
		return
	}
	slog.Debug("direct message handled", "user", m.Author.ID, "outcome", outcome)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var cmd *command
	for n := range commands {
		if commands[n].def.Name == data.Name {
			cmd = &commands[n]
			break
		}
	}
	if cmd == nil {
		return
	}
	if i.GuildID == "" && cmd.guildOnly {
		b.respond(i, "❌ This command can only be used in a server.")
		return
	}
	slog.Debug("command received", "command", data.Name, "guild", i.GuildID, "user", userID(i))

	opts := optionMap(data.Options)
	if cmd.respond != nil {
		cmd.respond(b, ctx, i, opts)
		return
	}

	if !b.deferReply(i) {
		return
	}
	embed, err := cmd.run(b, ctx, i, opts)
	if err != nil {
		slog.Debug("command failed", "command", data.Name, "guild", i.GuildID, "err", err)
		b.editReply(i, platform.Describe(err))
		return
	}
	b.editEmbed(i, embed)
}

// member converts the interaction author into the model the services check
func member(i *discordgo.InteractionCreate) models.Member {
	if i.Member == nil || i.Member.User == nil {
		if i.User == nil {
			return models.Member{}
		}
		return models.Member{UserID: i.User.ID, DisplayName: i.User.String()}
	}
	return models.Member{
		UserID:        i.Member.User.ID,
		DisplayName:   i.Member.User.String(),
		RoleIDs:       i.Member.Roles,
		Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
	}
}

func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) guildName(guildID string) string {
	if g, err := b.s.State.Guild(guildID); err == nil && g.Name != "" {
		return g.Name
	}
	return guildID
}

// respond sends an ephemeral text reply
func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("failed to respond to interaction", "err", err)
	}
}

func (b *Bot) respondError(i *discordgo.InteractionCreate, err error) {
	b.respond(i, platform.Describe(err))
}

func (b *Bot) respondModal(i *discordgo.InteractionCreate, customID, title string, inputs ...discordgo.TextInput) {
	rows := make([]discordgo.MessageComponent, len(inputs))
	for n, in := range inputs {
		rows[n] = discordgo.ActionsRow{Components: []discordgo.MessageComponent{in}}
	}
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      platform.Truncate(title, 45),
			Components: rows,
		},
	})
	if err != nil {
		slog.Warn("failed to open modal", "custom_id", customID, "err", err)
	}
}

// deferReply acknowledges the interaction with an ephemeral "thinking" state
func (b *Bot) deferReply(i *discordgo.InteractionCreate) bool {
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Warn("failed to defer interaction", "err", err)
		return false
	}
	return true
}

func (b *Bot) editReply(i *discordgo.InteractionCreate, content string) {
	if _, err := b.s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		slog.Warn("failed to edit interaction response", "err", err)
	}
}

func (b *Bot) editEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := b.s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		slog.Warn("failed to edit interaction response", "err", err)
	}
}

func (b *Bot) followup(i *discordgo.InteractionCreate, content string) {
	_, err := b.s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		slog.Warn("failed to send followup", "err", err)
	}
}

func success(title, body string) *discordgo.MessageEmbed {
	return noticeEmbed(platform.Notice{Title: title, Body: body, Kind: platform.KindSuccess})
}

func info(title, body string) *discordgo.MessageEmbed {
	return noticeEmbed(platform.Notice{Title: title, Body: body, Kind: platform.KindInfo})
}
