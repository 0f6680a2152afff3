// Package review carries stored applications from pending to a decision and
// runs the side effects of that decision.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/keylock"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

// ReviewRequest is a staff decision on one application
type ReviewRequest struct {
	GuildID       string
	GuildName     string
	ApplicationID string
	Action        models.Action
	Reviewer      models.Member
	Reason        string
}

// Result reports what happened after the decision was stored. Only the stored
// decision is authoritative; every other field is best effort.
type Result struct {
	Application  models.Application
	Notified     bool
	TicketClosed bool
	GrantedRoles []string
	FailedRoles  map[string]error
}

// Workflow reviews applications and manages their tickets
type Workflow struct {
	store    database.Store
	platform platform.Platform
	guilds   *keylock.Map
}

// New creates a Workflow. guilds must be the lock map the interview engine
// uses so appends and reviews of one guild's applications never interleave.
func New(store database.Store, p platform.Platform, guilds *keylock.Map) *Workflow {
	return &Workflow{store: store, platform: p, guilds: guilds}
}

// SubmitReview records the decision, then updates the staff post, notifies
// the applicant, closes their ticket and grants roles on acceptance.
func (w *Workflow) SubmitReview(ctx context.Context, req ReviewRequest) (*Result, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, errx.New(errx.TypeValidation, "REASON_REQUIRED", "a reason is required")
	}
	if !req.Action.Valid() {
		return nil, errx.New(errx.TypeValidation, "INVALID_ACTION", "unknown review action").
			WithDetail("action", req.Action)
	}

	cfg, err := w.Authorize(ctx, req.GuildID, req.Reviewer)
	if err != nil {
		return nil, err
	}

	app, err := w.decide(ctx, req.GuildID, req.ApplicationID, req.Action, req.Reviewer.UserID, reason)
	if err != nil {
		return nil, err
	}
	slog.Info("application reviewed",
		"guild", req.GuildID, "application", app.ID, "status", app.Status, "reviewer", req.Reviewer.UserID)

	res := &Result{Application: app, FailedRoles: make(map[string]error)}

	if !app.Message.IsZero() {
		if err := w.platform.MarkReviewed(ctx, app.Message, app, req.Reviewer.DisplayName); err != nil {
			slog.Warn("failed to update staff post", "guild", req.GuildID, "application", app.ID, "err", err)
		}
	}

	res.Notified = w.notifyDecision(ctx, app, req.GuildName)
	res.TicketClosed = w.closeTicket(ctx, cfg, app)

	if req.Action == models.ActionAccept {
		w.grantRoles(ctx, req.GuildID, cfg, app, res)
	}
	return res, nil
}

// decide applies the status change under the guild lock so a second review
// of the same application always sees the first one.
func (w *Workflow) decide(ctx context.Context, guildID, applicationID string, action models.Action, reviewerID, reason string) (models.Application, error) {
	unlock := w.guilds.Lock(guildID)
	defer unlock()

	apps, err := w.store.LoadApplications(ctx, guildID)
	if err != nil {
		return models.Application{}, err
	}
	i := models.FindApplication(apps, applicationID)
	if i < 0 {
		return models.Application{}, applicationNotFound(applicationID)
	}
	if err := apps[i].Resolve(action, reviewerID, reason); err != nil {
		return models.Application{}, err
	}
	if err := w.store.SaveApplications(ctx, guildID, apps); err != nil {
		return models.Application{}, err
	}
	return apps[i], nil
}

func (w *Workflow) notifyDecision(ctx context.Context, app models.Application, guildName string) bool {
	n := platform.Notice{
		Title:  "Application Denied",
		Body:   fmt.Sprintf("Your application for **%s** has been **denied**.\n\n**Reason:**\n%s", app.Category, app.Reason),
		Kind:   platform.KindError,
		Footer: guildName,
	}
	if app.Status == models.StatusAccepted {
		n.Title = "Application Accepted!"
		n.Body = fmt.Sprintf("Your application for **%s** has been **accepted**.\n\n**Reason:**\n%s", app.Category, app.Reason)
		n.Kind = platform.KindSuccess
	}
	if err := w.platform.SendDirectMessage(ctx, app.UserID, n); err != nil {
		slog.Warn("failed to notify applicant of decision", "user", app.UserID, "application", app.ID, "err", err)
		return false
	}
	return true
}

func (w *Workflow) closeTicket(ctx context.Context, cfg *models.GuildConfig, app models.Application) bool {
	if cfg.TicketCategoryID == "" {
		return false
	}
	ch, ok, err := w.platform.FindChannel(ctx, cfg.GuildID, cfg.TicketCategoryID, TicketName(app.UserDisplayName))
	if err != nil {
		slog.Warn("failed to look up ticket", "guild", cfg.GuildID, "application", app.ID, "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := w.platform.DeleteChannel(ctx, ch.ID, "Application processed"); err != nil {
		slog.Warn("failed to close ticket", "guild", cfg.GuildID, "channel", ch.ID, "err", err)
		return false
	}
	return true
}

// grantRoles tries every configured role. One failure does not stop the rest.
func (w *Workflow) grantRoles(ctx context.Context, guildID string, cfg *models.GuildConfig, app models.Application, res *Result) {
	category, _ := cfg.FindCategory(app.Category)
	if category == nil || len(category.RoleIDs) == 0 {
		return
	}
	for _, roleID := range category.RoleIDs {
		if err := w.platform.GrantRole(ctx, guildID, app.UserID, roleID); err != nil {
			slog.Warn("failed to grant role", "guild", guildID, "user", app.UserID, "role", roleID, "err", err)
			res.FailedRoles[roleID] = err
			continue
		}
		res.GrantedRoles = append(res.GrantedRoles, roleID)
	}
	if len(res.GrantedRoles) == 0 {
		return
	}
	err := w.platform.SendDirectMessage(ctx, app.UserID, platform.Notice{
		Body: fmt.Sprintf("You have been assigned the roles for **%s**!", category.Name),
		Kind: platform.KindSuccess,
	})
	if err != nil {
		slog.Warn("failed to announce granted roles", "user", app.UserID, "err", err)
	}
}

// OpenTicket creates a private channel for discussing an application with its applicant
func (w *Workflow) OpenTicket(ctx context.Context, guildID, applicationID string, requester models.Member) (platform.ChannelRef, error) {
	cfg, err := w.Authorize(ctx, guildID, requester)
	if err != nil {
		return platform.ChannelRef{}, err
	}
	if cfg.TicketCategoryID == "" {
		return platform.ChannelRef{}, errx.New(errx.TypeNotConfigured, "TICKET_CATEGORY_NOT_SET", "ticket category not set")
	}

	app, err := w.Get(ctx, guildID, applicationID)
	if err != nil {
		return platform.ChannelRef{}, err
	}

	name := TicketName(app.UserDisplayName)
	existing, ok, err := w.platform.FindChannel(ctx, guildID, cfg.TicketCategoryID, name)
	if err != nil {
		return platform.ChannelRef{}, err
	}
	if ok {
		return existing, errx.New(errx.TypeConflict, "TICKET_EXISTS", "a ticket is already open for this user").
			WithDetail("channel_id", existing.ID)
	}

	visibleTo := platform.Audience{UserIDs: []string{app.UserID}, RoleIDs: cfg.AdminRoleIDs}
	ch, err := w.platform.CreatePrivateChannel(ctx, guildID, cfg.TicketCategoryID, name, visibleTo)
	if err != nil {
		return platform.ChannelRef{}, err
	}
	slog.Info("ticket opened", "guild", guildID, "application", app.ID, "channel", ch.ID)

	err = w.platform.SendChannelMessage(ctx, ch.ID, platform.Notice{
		Title: "Application Ticket",
		Body: fmt.Sprintf("This ticket was opened about the **%s** application of %s.\n\nAn admin will be with you shortly to discuss it.",
			app.Category, app.UserDisplayName),
		Kind: platform.KindInfo,
	})
	if err != nil {
		slog.Warn("failed to greet ticket", "guild", guildID, "channel", ch.ID, "err", err)
	}
	return ch, nil
}

// Get returns one application
func (w *Workflow) Get(ctx context.Context, guildID, applicationID string) (models.Application, error) {
	apps, err := w.store.LoadApplications(ctx, guildID)
	if err != nil {
		return models.Application{}, err
	}
	i := models.FindApplication(apps, applicationID)
	if i < 0 {
		return models.Application{}, applicationNotFound(applicationID)
	}
	return apps[i], nil
}

// History returns every application userID has submitted, oldest first
func (w *Workflow) History(ctx context.Context, guildID, userID string) ([]models.Application, error) {
	apps, err := w.store.LoadApplications(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(apps, func(a models.Application) bool { return a.UserID != userID }), nil
}

// Pending returns the applications still awaiting a decision, oldest first
func (w *Workflow) Pending(ctx context.Context, guildID string) ([]models.Application, error) {
	apps, err := w.store.LoadApplications(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(apps, func(a models.Application) bool { return !a.IsPending() }), nil
}

// Authorize loads the guild config and checks that m may act as staff
func (w *Workflow) Authorize(ctx context.Context, guildID string, m models.Member) (*models.GuildConfig, error) {
	cfg, err := w.store.LoadConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errx.New(errx.TypeNotConfigured, "NOT_CONFIGURED", "this server has not been set up yet").
			WithDetail("guild_id", guildID)
	}
	if !models.IsAdministrator(m, cfg) {
		return nil, errx.New(errx.TypePermissionDenied, "NOT_STAFF", "you do not have permission to review applications")
	}
	return cfg, nil
}

// TicketName derives the ticket channel name from the applicant's name:
// "ticket-" followed by the lowercase letters and digits of the name before
// any "#discriminator". Different names can collide.
func TicketName(displayName string) string {
	name, _, _ := strings.Cut(displayName, "#")
	var b strings.Builder
	b.WriteString("ticket-")
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func applicationNotFound(id string) *errx.Error {
	return errx.New(errx.TypeNotFound, "APPLICATION_NOT_FOUND", "application not found").
		WithDetail("application_id", id)
}
