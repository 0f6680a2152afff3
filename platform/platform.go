// Package platform describes what the intake core needs from a chat platform.
// The discord and telegram packages implement it.
package platform

import (
	"context"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
)

// Kind sets how a Notice is styled
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarning
	KindError
)

// Notice is a short styled message: an embed on Discord, a formatted message on Telegram
type Notice struct {
	Title  string
	Body   string
	Kind   Kind
	Footer string
}

// ChannelRef identifies a channel created or found on the platform
type ChannelRef struct {
	ID   string
	Name string
}

// Audience lists who may see a private channel
type Audience struct {
	UserIDs []string
	RoleIDs []string
}

// Messenger delivers messages to members and staff channels
type Messenger interface {
	// SendDirectMessage fails with DeliveryBlocked when the member does not accept messages
	SendDirectMessage(ctx context.Context, userID string, n Notice) error
	// PresentQuestion asks question number of total, as free text or a yes/no choice
	PresentQuestion(ctx context.Context, userID string, q models.Question, number, total int) error
	// PostAwaitingReview posts app to the staff channel with accept, deny, history and ticket actions
	PostAwaitingReview(ctx context.Context, guildID, channelID string, app models.Application) (models.MessageRef, error)
	// MarkReviewed updates the staff post to show the decision and removes its actions
	MarkReviewed(ctx context.Context, ref models.MessageRef, app models.Application, reviewerName string) error
	DeleteMessage(ctx context.Context, ref models.MessageRef) error
	SendChannelMessage(ctx context.Context, channelID string, n Notice) error
}

// Guilds manages roles and channels
type Guilds interface {
	// GrantRole fails with PermissionDenied or NotFound (unknown role)
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	// CreatePrivateChannel creates a channel under parentID that only visibleTo can see
	CreatePrivateChannel(ctx context.Context, guildID, parentID, name string, visibleTo Audience) (ChannelRef, error)
	FindChannel(ctx context.Context, guildID, parentID, name string) (ChannelRef, bool, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
}

// Platform is everything a front-end provides to the core
type Platform interface {
	Messenger
	Guilds
}

// DeliveryBlocked reports a direct message the member refused
func DeliveryBlocked(userID string, err error) *errx.Error {
	return errx.Wrap(err, "could not send a direct message", errx.TypeDeliveryBlocked).
		WithDetail("user_id", userID)
}

// PermissionDenied reports an action the platform refused
func PermissionDenied(action string, err error) *errx.Error {
	return errx.Wrap(err, "the bot is not allowed to "+action, errx.TypePermissionDenied)
}

// RoleNotFound reports a configured role that no longer exists
func RoleNotFound(roleID string) *errx.Error {
	return errx.New(errx.TypeNotFound, "ROLE_NOT_FOUND", "role not found").
		WithDetail("role_id", roleID)
}

// Unsupported reports a feature the platform cannot provide
func Unsupported(feature string) *errx.Error {
	return errx.New(errx.TypePermissionDenied, "UNSUPPORTED", feature+" is not supported on this platform")
}
