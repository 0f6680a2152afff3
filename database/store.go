// Package database persists per-guild documents. Every operation reads or
// writes a whole document; there is no partial update and no optimistic
// concurrency check, so concurrent writers to the same document race and the
// last write wins. Callers that read-modify-write serialize themselves.
package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
)

// Kind names one of the per-guild documents
type Kind string

const (
	KindConfig       Kind = "config"
	KindApplications Kind = "applications"
	KindCooldowns    Kind = "cooldowns"
)

// ErrNoDocument is returned by a Backend when a document does not exist yet
var ErrNoDocument = errors.New("document not found")

// Backend stores opaque documents keyed by guild and kind
type Backend interface {
	Get(ctx context.Context, guildID string, kind Kind) ([]byte, error)
	Put(ctx context.Context, guildID string, kind Kind, data []byte) error
	Close() error
}

// Store is the repository the bot works against
type Store interface {
	// LoadConfig returns nil, nil when the guild has not been set up
	LoadConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	SaveConfig(ctx context.Context, guildID string, cfg *models.GuildConfig) error
	LoadApplications(ctx context.Context, guildID string) ([]models.Application, error)
	SaveApplications(ctx context.Context, guildID string, apps []models.Application) error
	LoadCooldowns(ctx context.Context, guildID string) (models.Cooldowns, error)
	SaveCooldowns(ctx context.Context, guildID string, cooldowns models.Cooldowns) error
	Close() error
}

// Documents implements Store on top of any Backend using JSON documents
type Documents struct {
	backend Backend
}

// NewDocuments creates a Store over backend
func NewDocuments(backend Backend) *Documents {
	return &Documents{backend: backend}
}

func (d *Documents) LoadConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	var cfg models.GuildConfig
	found, err := d.load(ctx, guildID, KindConfig, &cfg)
	if err != nil || !found {
		return nil, err
	}
	return &cfg, nil
}

func (d *Documents) SaveConfig(ctx context.Context, guildID string, cfg *models.GuildConfig) error {
	return d.save(ctx, guildID, KindConfig, cfg)
}

func (d *Documents) LoadApplications(ctx context.Context, guildID string) ([]models.Application, error) {
	var apps []models.Application
	if _, err := d.load(ctx, guildID, KindApplications, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (d *Documents) SaveApplications(ctx context.Context, guildID string, apps []models.Application) error {
	if apps == nil {
		apps = []models.Application{}
	}
	return d.save(ctx, guildID, KindApplications, apps)
}

func (d *Documents) LoadCooldowns(ctx context.Context, guildID string) (models.Cooldowns, error) {
	cooldowns := models.Cooldowns{}
	if _, err := d.load(ctx, guildID, KindCooldowns, &cooldowns); err != nil {
		return nil, err
	}
	if cooldowns == nil {
		cooldowns = models.Cooldowns{}
	}
	return cooldowns, nil
}

func (d *Documents) SaveCooldowns(ctx context.Context, guildID string, cooldowns models.Cooldowns) error {
	return d.save(ctx, guildID, KindCooldowns, cooldowns)
}

// Ping checks the backend connection when the backend supports it
func (d *Documents) Ping(ctx context.Context) error {
	if p, ok := d.backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the backend
func (d *Documents) Close() error {
	return d.backend.Close()
}

func (d *Documents) load(ctx context.Context, guildID string, kind Kind, v any) (bool, error) {
	data, err := d.backend.Get(ctx, guildID, kind)
	if errors.Is(err, ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, errx.Wrap(err, "load "+string(kind)+" document", errx.TypePersistence).
			WithDetail("guild_id", guildID)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errx.Wrap(err, "decode "+string(kind)+" document", errx.TypePersistence).
			WithDetail("guild_id", guildID)
	}
	return true, nil
}

func (d *Documents) save(ctx context.Context, guildID string, kind Kind, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errx.Wrap(err, "encode "+string(kind)+" document", errx.TypePersistence).
			WithDetail("guild_id", guildID)
	}
	if err := d.backend.Put(ctx, guildID, kind, data); err != nil {
		return errx.Wrap(err, "save "+string(kind)+" document", errx.TypePersistence).
			WithDetail("guild_id", guildID)
	}
	return nil
}
