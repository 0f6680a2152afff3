package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

const (
	colorBlurple = 0x5865F2
	colorGreen   = 0x00FF00
	colorRed     = 0xFF0000
	colorOrange  = 0xFFA500

	// embed descriptions are capped at 4096; leave room for the part footer
	chunkSize = 3900
)

// Platform implements platform.Platform with the Discord REST API
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform {
	return &Platform{s: s}
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID string, n platform.Notice) error {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	if _, err := p.s.ChannelMessageSendEmbed(ch.ID, noticeEmbed(n), discordgo.WithContext(ctx)); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	return nil
}

func (p *Platform) PresentQuestion(ctx context.Context, userID string, q models.Question, number, total int) error {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.DeliveryBlocked(userID, err)
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Question %d/%d", number, total),
		Description: q.Text,
		Color:       colorBlurple,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Type your answer below"},
	}
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if q.Type == models.QuestionYesNo {
		embed.Footer.Text = "Click a button below"
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Yes", Style: discordgo.SuccessButton, CustomID: answerID(prefixAnswerYes, number-1)},
				discordgo.Button{Label: "No", Style: discordgo.DangerButton, CustomID: answerID(prefixAnswerNo, number-1)},
			}},
		}
	}

	if _, err := p.s.ChannelMessageSendComplex(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return platform.DeliveryBlocked(userID, err)
	}
	return nil
}

// PostAwaitingReview posts the application in as many parts as needed. The
// first part carries the staff buttons and is the one the record points at.
func (p *Platform) PostAwaitingReview(ctx context.Context, guildID, channelID string, app models.Application) (models.MessageRef, error) {
	parts := platform.Chunk(applicationText(app), chunkSize)
	user, _, _ := strings.Cut(app.UserDisplayName, "#")

	var first *discordgo.Message
	for i, part := range parts {
		footer := "ID: " + app.ID
		if len(parts) > 1 {
			footer += fmt.Sprintf(" (Part %d/%d)", i+1, len(parts))
		}
		msg := &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       fmt.Sprintf("📋 %s Application - %s", app.Category, user),
				Description: part,
				Color:       colorBlurple,
				Footer:      &discordgo.MessageEmbedFooter{Text: footer},
				Timestamp:   app.Timestamp.Format(time.RFC3339),
			}},
		}
		if i == 0 {
			msg.Components = reviewButtons(app)
		}

		sent, err := p.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
		if err != nil {
			if first != nil {
				if derr := p.DeleteMessage(ctx, models.MessageRef{ChannelID: channelID, MessageID: first.ID}); derr != nil {
					slog.Warn("failed to remove partial application post", "channel", channelID, "message", first.ID, "err", derr)
				}
			}
			return models.MessageRef{}, classify(err, "post in the log channel")
		}
		if first == nil {
			first = sent
		}
	}
	return models.MessageRef{ChannelID: channelID, MessageID: first.ID}, nil
}

func (p *Platform) MarkReviewed(ctx context.Context, ref models.MessageRef, app models.Application, reviewerName string) error {
	msg, err := p.s.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, "read the application post")
	}

	embed := &discordgo.MessageEmbed{Title: "Application", Color: colorBlurple}
	if len(msg.Embeds) > 0 {
		embed = msg.Embeds[0]
	}
	status := "❌ Denied"
	embed.Color = colorRed
	if app.Status == models.StatusAccepted {
		status = "✅ Accepted"
		embed.Color = colorGreen
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "📊 Status", Value: status, Inline: true},
		&discordgo.MessageEmbedField{Name: "👤 Reviewed By", Value: reviewerName, Inline: true},
		&discordgo.MessageEmbedField{Name: "📝 Reason", Value: platform.Truncate(app.Reason, 1024)},
	)

	embeds := []*discordgo.MessageEmbed{embed}
	components := []discordgo.MessageComponent{}
	_, err = p.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, "edit the application post")
	}
	return nil
}

// DeleteMessage removes the post and any continuation parts that follow it
func (p *Platform) DeleteMessage(ctx context.Context, ref models.MessageRef) error {
	first, err := p.s.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, "read the application post")
	}
	if id := footerID(first); id != "" {
		later, err := p.s.ChannelMessages(ref.ChannelID, 20, "", ref.MessageID, "", discordgo.WithContext(ctx))
		if err != nil {
			slog.Warn("failed to list application post parts", "channel", ref.ChannelID, "message", ref.MessageID, "err", err)
		}
		for _, m := range later {
			if m.Author != nil && m.Author.ID == first.Author.ID && footerID(m) == id {
				if err := p.s.ChannelMessageDelete(ref.ChannelID, m.ID, discordgo.WithContext(ctx)); err != nil {
					slog.Warn("failed to delete application post part", "channel", ref.ChannelID, "message", m.ID, "err", err)
				}
			}
		}
	}
	if err := p.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "delete the application post")
	}
	return nil
}

func (p *Platform) SendChannelMessage(ctx context.Context, channelID string, n platform.Notice) error {
	if _, err := p.s.ChannelMessageSendEmbed(channelID, noticeEmbed(n), discordgo.WithContext(ctx)); err != nil {
		return classify(err, "send messages in that channel")
	}
	return nil
}

func (p *Platform) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := p.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		if restCode(err) == discordgo.ErrCodeUnknownRole {
			return platform.RoleNotFound(roleID)
		}
		return classify(err, "manage roles")
	}
	return nil
}

// CreatePrivateChannel hides the channel from @everyone and opens it to the
// audience and the bot itself.
func (p *Platform) CreatePrivateChannel(ctx context.Context, guildID, parentID, name string, visibleTo platform.Audience) (platform.ChannelRef, error) {
	allow := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	overwrites := []*discordgo.PermissionOverwrite{{
		ID:   guildID,
		Type: discordgo.PermissionOverwriteTypeRole,
		Deny: discordgo.PermissionViewChannel,
	}}
	if p.s.State != nil && p.s.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    p.s.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: allow,
		})
	}
	for _, id := range visibleTo.UserIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: id, Type: discordgo.PermissionOverwriteTypeMember, Allow: allow})
	}
	for _, id := range visibleTo.RoleIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: id, Type: discordgo.PermissionOverwriteTypeRole, Allow: allow})
	}

	ch, err := p.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return platform.ChannelRef{}, classify(err, "create channels")
	}
	return platform.ChannelRef{ID: ch.ID, Name: ch.Name}, nil
}

func (p *Platform) FindChannel(ctx context.Context, guildID, parentID, name string) (platform.ChannelRef, bool, error) {
	channels, err := p.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.ChannelRef{}, false, classify(err, "list channels")
	}
	for _, ch := range channels {
		if ch.Name == name && ch.ParentID == parentID {
			return platform.ChannelRef{ID: ch.ID, Name: ch.Name}, true, nil
		}
	}
	return platform.ChannelRef{}, false, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	if _, err := p.s.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
		return classify(err, "delete channels")
	}
	return nil
}

// restCode returns the Discord JSON error code of a REST failure, or 0
func restCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code
	}
	return 0
}

// classify maps a Discord REST failure onto the error taxonomy
func classify(err error, action string) error {
	switch restCode(err) {
	case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
		return platform.PermissionDenied(action, err)
	case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
		return errx.Wrap(err, "could not "+action, errx.TypeNotFound)
	default:
		return errx.Wrap(err, "could not "+action, errx.TypeDeliveryBlocked)
	}
}

var _ platform.Platform = (*Platform)(nil)
