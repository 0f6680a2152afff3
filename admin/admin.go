// Package admin edits a guild's configuration document. Every edit reads the
// whole document, changes it and writes it back.
package admin

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/korjavin/intakebot/config"
	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/keylock"
	"github.com/korjavin/intakebot/models"
)

const (
	// MaxCategoryRoles is how many roles a category can grant
	MaxCategoryRoles = 4
	// EditableQuestions is how many questions EditQuestions can rewrite at once
	EditableQuestions = 5
)

// Service runs the admin commands
type Service struct {
	store    database.Store
	template *config.Template
	locks    *keylock.Map
}

// New creates a Service. locks may be shared with other packages; config
// edits use their own key space in it.
func New(store database.Store, template *config.Template, locks *keylock.Map) *Service {
	return &Service{store: store, template: template, locks: locks}
}

// Setup writes a fresh configuration, replacing any existing one
func (s *Service) Setup(ctx context.Context, guildID string, actor models.Member, logChannelID, adminRoleID string) (*models.GuildConfig, error) {
	if logChannelID == "" || adminRoleID == "" {
		return nil, errx.New(errx.TypeValidation, "SETUP_INCOMPLETE", "a log channel and an admin role are required")
	}

	unlock := s.locks.Lock(configKey(guildID))
	defer unlock()

	existing, err := s.store.LoadConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !models.IsAdministrator(actor, existing) {
		return nil, permissionDenied()
	}

	cfg := &models.GuildConfig{
		GuildID:       guildID,
		LogChannelID:  logChannelID,
		AdminRoleIDs:  []string{adminRoleID},
		CooldownHours: models.DefaultCooldownHours,
	}
	for _, c := range s.template.Setup {
		c.RoleIDs = slices.Clone(c.RoleIDs)
		c.Questions = c.SnapshotQuestions()
		cfg.Categories = append(cfg.Categories, c)
	}

	if err := s.store.SaveConfig(ctx, guildID, cfg); err != nil {
		return nil, err
	}
	slog.Info("guild set up", "guild", guildID, "by", actor.UserID, "categories", len(cfg.Categories))
	return cfg, nil
}

// Panel returns the categories members can apply for
func (s *Service) Panel(ctx context.Context, guildID string) ([]models.Category, error) {
	cfg, err := s.store.LoadConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, notConfigured(guildID)
	}
	if len(cfg.Categories) == 0 {
		return nil, errx.New(errx.TypeValidation, "NO_CATEGORIES", "no application categories configured")
	}
	return cfg.Categories, nil
}

// Config returns the guild configuration
func (s *Service) Config(ctx context.Context, guildID string, actor models.Member) (*models.GuildConfig, error) {
	return s.authorize(ctx, guildID, actor)
}

// Questions returns one category with its questions
func (s *Service) Questions(ctx context.Context, guildID string, actor models.Member, category string) (*models.Category, error) {
	cfg, err := s.authorize(ctx, guildID, actor)
	if err != nil {
		return nil, err
	}
	c, _ := cfg.FindCategory(category)
	if c == nil {
		return nil, categoryNotFound(category)
	}
	return c, nil
}

// AddCategory creates a category seeded with the template's starter questions
func (s *Service) AddCategory(ctx context.Context, guildID string, actor models.Member, name, description string, roleIDs []string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errx.New(errx.TypeValidation, "CATEGORY_NAME_REQUIRED", "category name is required")
	}
	roleIDs = slices.DeleteFunc(slices.Clone(roleIDs), func(id string) bool { return id == "" })
	if len(roleIDs) > MaxCategoryRoles {
		return nil, errx.New(errx.TypeValidation, "TOO_MANY_ROLES", "a category can grant at most 4 roles").
			WithDetail("roles", len(roleIDs))
	}

	var added models.Category
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		if c, _ := cfg.FindCategory(name); c != nil {
			return errx.New(errx.TypeConflict, "CATEGORY_EXISTS", "category already exists").
				WithDetail("category", c.Name)
		}
		added = models.Category{
			Name:        name,
			Description: strings.TrimSpace(description),
			RoleIDs:     roleIDs,
			Questions:   slices.Clone(s.template.NewCategory),
		}
		cfg.Categories = append(cfg.Categories, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// RemoveCategory deletes a category. Sessions already running keep their questions.
func (s *Service) RemoveCategory(ctx context.Context, guildID string, actor models.Member, name string) error {
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		_, i := cfg.FindCategory(name)
		if i < 0 {
			return categoryNotFound(name)
		}
		cfg.Categories = slices.Delete(cfg.Categories, i, i+1)
		return nil
	})
	return err
}

// AddQuestion appends a question and returns the new question count
func (s *Service) AddQuestion(ctx context.Context, guildID string, actor models.Member, category, text string, typ models.QuestionType) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errx.New(errx.TypeValidation, "QUESTION_TEXT_REQUIRED", "question text is required")
	}
	if !typ.Valid() {
		return 0, errx.New(errx.TypeValidation, "INVALID_QUESTION_TYPE", "unknown question type").
			WithDetail("type", typ)
	}

	var count int
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		c, _ := cfg.FindCategory(category)
		if c == nil {
			return categoryNotFound(category)
		}
		if len(c.Questions) >= models.MaxQuestions {
			return errx.New(errx.TypeValidation, "QUESTION_LIMIT", "a category can have at most 20 questions").
				WithDetail("category", c.Name)
		}
		c.Questions = append(c.Questions, models.Question{Text: text, Type: typ})
		count = len(c.Questions)
		return nil
	})
	return count, err
}

// RemoveQuestion deletes question number (1-based) and returns it
func (s *Service) RemoveQuestion(ctx context.Context, guildID string, actor models.Member, category string, number int) (models.Question, error) {
	var removed models.Question
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		c, _ := cfg.FindCategory(category)
		if c == nil {
			return categoryNotFound(category)
		}
		if number < 1 || number > len(c.Questions) {
			return errx.New(errx.TypeNotFound, "QUESTION_NOT_FOUND", "invalid question number").
				WithDetail("number", number).
				WithDetail("questions", len(c.Questions))
		}
		removed = c.Questions[number-1]
		c.Questions = slices.Delete(c.Questions, number-1, number)
		return nil
	})
	return removed, err
}

// EditQuestions rewrites the first questions of a category from texts.
// Blank entries drop the question at that position; questions beyond the
// editable range are kept as they are. Returns the new question count.
func (s *Service) EditQuestions(ctx context.Context, guildID string, actor models.Member, category string, texts []string) (int, error) {
	var count int
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		c, _ := cfg.FindCategory(category)
		if c == nil {
			return categoryNotFound(category)
		}
		editable := min(EditableQuestions, len(c.Questions))

		var next []models.Question
		for i := 0; i < editable && i < len(texts); i++ {
			if text := strings.TrimSpace(texts[i]); text != "" {
				next = append(next, models.Question{Text: text, Type: c.Questions[i].Type})
			}
		}
		next = append(next, c.Questions[editable:]...)
		if len(next) == 0 {
			return errx.New(errx.TypeValidation, "QUESTIONS_REQUIRED", "at least one question is required")
		}
		c.Questions = next
		count = len(next)
		return nil
	})
	return count, err
}

func (s *Service) SetLogChannel(ctx context.Context, guildID string, actor models.Member, channelID string) error {
	if channelID == "" {
		return errx.New(errx.TypeValidation, "CHANNEL_REQUIRED", "a channel is required")
	}
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		cfg.LogChannelID = channelID
		return nil
	})
	return err
}

func (s *Service) SetTicketCategory(ctx context.Context, guildID string, actor models.Member, categoryID string) error {
	if categoryID == "" {
		return errx.New(errx.TypeValidation, "CHANNEL_REQUIRED", "a category channel is required")
	}
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		cfg.TicketCategoryID = categoryID
		return nil
	})
	return err
}

// SetCooldown sets the cooldown window. 0 disables it.
func (s *Service) SetCooldown(ctx context.Context, guildID string, actor models.Member, hours int) error {
	if hours < 0 || hours > models.MaxCooldownHours {
		return errx.New(errx.TypeValidation, "COOLDOWN_RANGE", "cooldown must be between 0 and 168 hours").
			WithDetail("hours", hours)
	}
	_, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		cfg.CooldownHours = hours
		return nil
	})
	return err
}

// AddAdminRole returns the number of admin roles after the change
func (s *Service) AddAdminRole(ctx context.Context, guildID string, actor models.Member, roleID string) (int, error) {
	cfg, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		if slices.Contains(cfg.AdminRoleIDs, roleID) {
			return errx.New(errx.TypeConflict, "ADMIN_ROLE_EXISTS", "role is already an admin role").
				WithDetail("role_id", roleID)
		}
		cfg.AdminRoleIDs = append(cfg.AdminRoleIDs, roleID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cfg.AdminRoleIDs), nil
}

// RemoveAdminRole refuses to remove the last admin role
func (s *Service) RemoveAdminRole(ctx context.Context, guildID string, actor models.Member, roleID string) (int, error) {
	cfg, err := s.update(ctx, guildID, actor, func(cfg *models.GuildConfig) error {
		i := slices.Index(cfg.AdminRoleIDs, roleID)
		if i < 0 {
			return errx.New(errx.TypeNotFound, "ADMIN_ROLE_NOT_FOUND", "role is not an admin role").
				WithDetail("role_id", roleID)
		}
		if len(cfg.AdminRoleIDs) == 1 {
			return errx.New(errx.TypeValidation, "LAST_ADMIN_ROLE", "cannot remove the last admin role")
		}
		cfg.AdminRoleIDs = slices.Delete(cfg.AdminRoleIDs, i, i+1)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cfg.AdminRoleIDs), nil
}

// Authorize checks that actor may run admin commands in an already set up guild
func (s *Service) Authorize(ctx context.Context, guildID string, actor models.Member) error {
	_, err := s.authorize(ctx, guildID, actor)
	return err
}

func (s *Service) authorize(ctx context.Context, guildID string, actor models.Member) (*models.GuildConfig, error) {
	cfg, err := s.store.LoadConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !models.IsAdministrator(actor, cfg) {
		return nil, permissionDenied()
	}
	if cfg == nil {
		return nil, notConfigured(guildID)
	}
	return cfg, nil
}

// update runs change on the stored config and saves the result. Edits from
// this process are serialized per guild; other writers still race.
func (s *Service) update(ctx context.Context, guildID string, actor models.Member, change func(*models.GuildConfig) error) (*models.GuildConfig, error) {
	unlock := s.locks.Lock(configKey(guildID))
	defer unlock()

	cfg, err := s.authorize(ctx, guildID, actor)
	if err != nil {
		return nil, err
	}
	if err := change(cfg); err != nil {
		return nil, err
	}
	if err := s.store.SaveConfig(ctx, guildID, cfg); err != nil {
		return nil, err
	}
	slog.Debug("guild config updated", "guild", guildID, "by", actor.UserID)
	return cfg, nil
}

func configKey(guildID string) string {
	return "config/" + guildID
}

func permissionDenied() *errx.Error {
	return errx.New(errx.TypePermissionDenied, "NOT_ADMIN", "you need administrator permissions or an admin role to use this command")
}

func notConfigured(guildID string) *errx.Error {
	return errx.New(errx.TypeNotConfigured, "NOT_CONFIGURED", "please run /setup first").
		WithDetail("guild_id", guildID)
}

func categoryNotFound(name string) *errx.Error {
	return errx.New(errx.TypeNotFound, "CATEGORY_NOT_FOUND", "category not found").
		WithDetail("category", name)
}
