// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

// DM is one direct message sent through the fake
type DM struct {
	UserID string
	Notice platform.Notice
}

// Prompt is one question presented through the fake
type Prompt struct {
	UserID   string
	Question models.Question
	Number   int
	Total    int
}

// Grant is one role assignment
type Grant struct {
	GuildID, UserID, RoleID string
}

// Fake records every call. The Block*, Fail* and Missing* fields inject failures.
type Fake struct {
	mu sync.Mutex

	DMs      []DM
	Prompts  []Prompt
	Posts    []models.Application
	Reviewed []models.Application
	Deleted  []models.MessageRef
	Channel  []platform.Notice
	Grants   []Grant
	Channels map[string]platform.ChannelRef // by name
	Audience map[string]platform.Audience   // by channel id
	Removed  []string

	BlockedUsers map[string]bool
	BlockPrompts bool
	FailPost     bool
	DeniedRoles  map[string]bool
	MissingRoles map[string]bool

	next int
}

func New() *Fake {
	return &Fake{
		Channels:     make(map[string]platform.ChannelRef),
		Audience:     make(map[string]platform.Audience),
		BlockedUsers: make(map[string]bool),
		DeniedRoles:  make(map[string]bool),
		MissingRoles: make(map[string]bool),
	}
}

func (f *Fake) SendDirectMessage(_ context.Context, userID string, n platform.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BlockedUsers[userID] {
		return platform.DeliveryBlocked(userID, errors.New("cannot send messages to this user"))
	}
	f.DMs = append(f.DMs, DM{UserID: userID, Notice: n})
	return nil
}

func (f *Fake) PresentQuestion(_ context.Context, userID string, q models.Question, number, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BlockedUsers[userID] || f.BlockPrompts {
		return platform.DeliveryBlocked(userID, errors.New("cannot send messages to this user"))
	}
	f.Prompts = append(f.Prompts, Prompt{UserID: userID, Question: q, Number: number, Total: total})
	return nil
}

func (f *Fake) PostAwaitingReview(_ context.Context, _, channelID string, app models.Application) (models.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPost {
		return models.MessageRef{}, platform.PermissionDenied("post in the log channel", errors.New("missing access"))
	}
	f.next++
	f.Posts = append(f.Posts, app)
	return models.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", f.next)}, nil
}

func (f *Fake) MarkReviewed(_ context.Context, _ models.MessageRef, app models.Application, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reviewed = append(f.Reviewed, app)
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, ref models.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, ref)
	return nil
}

func (f *Fake) SendChannelMessage(_ context.Context, _ string, n platform.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channel = append(f.Channel, n)
	return nil
}

func (f *Fake) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MissingRoles[roleID] {
		return platform.RoleNotFound(roleID)
	}
	if f.DeniedRoles[roleID] {
		return platform.PermissionDenied("manage roles", errors.New("missing permissions"))
	}
	f.Grants = append(f.Grants, Grant{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (f *Fake) CreatePrivateChannel(_ context.Context, _, _, name string, visibleTo platform.Audience) (platform.ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ch := platform.ChannelRef{ID: fmt.Sprintf("c%d", f.next), Name: name}
	f.Channels[name] = ch
	f.Audience[ch.ID] = visibleTo
	return ch, nil
}

func (f *Fake) FindChannel(_ context.Context, _, _, name string) (platform.ChannelRef, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[name]
	return ch, ok, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, ch := range f.Channels {
		if ch.ID == channelID {
			delete(f.Channels, name)
		}
	}
	f.Removed = append(f.Removed, channelID)
	return nil
}

// DMsTo returns the direct messages sent to userID
func (f *Fake) DMsTo(userID string) []DM {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DM
	for _, dm := range f.DMs {
		if dm.UserID == userID {
			out = append(out, dm)
		}
	}
	return out
}

var _ platform.Platform = (*Fake)(nil)
