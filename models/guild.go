package models

import (
	"slices"
	"time"
)

const (
	// DefaultCooldownHours applies to a freshly set up guild
	DefaultCooldownHours = 24
	// MaxCooldownHours is one week
	MaxCooldownHours = 168
)

// GuildConfig is the per-guild configuration document
type GuildConfig struct {
	GuildID          string     `json:"guildId"`
	LogChannelID     string     `json:"logChannelId"`
	TicketCategoryID string     `json:"ticketCategoryId,omitempty"`
	AdminRoleIDs     []string   `json:"adminRoleIds"`
	CooldownHours    int        `json:"cooldownHours"`
	Categories       []Category `json:"categories"`
}

// FindCategory looks a category up by name, ignoring case
func (g *GuildConfig) FindCategory(name string) (*Category, int) {
	for i := range g.Categories {
		if SameName(g.Categories[i].Name, name) {
			return &g.Categories[i], i
		}
	}
	return nil, -1
}

// CooldownWindow is the minimum wait between two submissions
func (g *GuildConfig) CooldownWindow() time.Duration {
	return time.Duration(g.CooldownHours) * time.Hour
}

// Member is a guild member as seen by the bot at the time of an event
type Member struct {
	UserID      string
	DisplayName string
	RoleIDs     []string
	// Administrator is the platform-level administrator permission
	Administrator bool
}

// IsAdministrator is the single capability check shared by the cooldown
// bypass, the admin commands and the staff review actions.
func IsAdministrator(m Member, cfg *GuildConfig) bool {
	if m.Administrator {
		return true
	}
	if cfg == nil {
		return false
	}
	for _, id := range cfg.AdminRoleIDs {
		if slices.Contains(m.RoleIDs, id) {
			return true
		}
	}
	return false
}

// Cooldowns maps a user id to the time of their last submission
type Cooldowns map[string]time.Time
