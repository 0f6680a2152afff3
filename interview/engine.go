// Package interview runs the direct-message question flow for one applicant
// at a time per user. The engine never blocks waiting for a reply: it stores
// the session and returns, and the next inbound event for that user resumes it.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/korjavin/intakebot/cooldown"
	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/keylock"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
	"github.com/korjavin/intakebot/session"
)

// Outcome tells the front-end what an inbound event did
type Outcome int

const (
	// OutcomeIgnored means the event left every session untouched
	OutcomeIgnored Outcome = iota
	OutcomeAdvanced
	OutcomeCompleted
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "ignored"
	}
}

const cancelKeyword = "cancel"

// StartRequest is a member picking a category from the guild menu
type StartRequest struct {
	GuildID      string
	GuildName    string
	Member       models.Member
	CategoryName string
}

// Engine drives sessions from category selection to a stored application
type Engine struct {
	store     database.Store
	sessions  session.Registry
	cooldowns *cooldown.Tracker
	messenger platform.Messenger

	users  keylock.Map
	guilds *keylock.Map

	now   func() time.Time
	newID func() string
}

// New creates an Engine. guilds serializes writes to the applications and
// cooldowns documents and must be shared with every other writer of them.
func New(store database.Store, sessions session.Registry, cooldowns *cooldown.Tracker, messenger platform.Messenger, guilds *keylock.Map) *Engine {
	return &Engine{
		store:     store,
		sessions:  sessions,
		cooldowns: cooldowns,
		messenger: messenger,
		guilds:    guilds,
		now:       time.Now,
		newID:     newApplicationID,
	}
}

// WithClock replaces the time source used for submission timestamps
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithIDs replaces the application id generator
func (e *Engine) WithIDs(newID func() string) *Engine {
	e.newID = newID
	return e
}

// newApplicationID returns a time-ordered UUID
func newApplicationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Active reports whether userID has an interview in progress
func (e *Engine) Active(userID string) bool {
	_, ok := e.sessions.Get(userID)
	return ok
}

// Start opens a session and asks the first question
func (e *Engine) Start(ctx context.Context, req StartRequest) error {
	userID := req.Member.UserID
	unlock := e.users.Lock(userID)
	defer unlock()

	cfg, err := e.store.LoadConfig(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return notConfigured(req.GuildID)
	}
	category, _ := cfg.FindCategory(req.CategoryName)
	if category == nil {
		return errx.New(errx.TypeNotFound, "CATEGORY_NOT_FOUND", "category not found").
			WithDetail("category", req.CategoryName)
	}
	if len(category.Questions) == 0 {
		return errx.New(errx.TypeValidation, "CATEGORY_EMPTY", "category has no questions").
			WithDetail("category", category.Name)
	}
	if e.Active(userID) {
		return inProgress(userID)
	}

	check, err := e.cooldowns.CanStart(ctx, req.GuildID, userID, models.IsAdministrator(req.Member, cfg))
	if err != nil {
		return err
	}
	if !check.Allowed {
		return cooldown.Rejection(check)
	}

	s := models.Session{
		UserID:       userID,
		DisplayName:  req.Member.DisplayName,
		GuildID:      req.GuildID,
		GuildName:    req.GuildName,
		CategoryName: category.Name,
		Questions:    category.SnapshotQuestions(),
	}

	intro := platform.Notice{
		Title: fmt.Sprintf("Application: %s", category.Name),
		Body: fmt.Sprintf("You started an application in **%s**.\nAnswer each question as it arrives. Type `%s` at any time to stop.",
			req.GuildName, cancelKeyword),
		Kind:   platform.KindInfo,
		Footer: fmt.Sprintf("%d questions", len(s.Questions)),
	}
	if err := e.messenger.SendDirectMessage(ctx, userID, intro); err != nil {
		return err
	}

	if !e.sessions.TryCreate(s) {
		return inProgress(userID)
	}
	if err := e.present(ctx, s); err != nil {
		e.sessions.Remove(userID)
		return err
	}

	slog.Info("application started", "guild", req.GuildID, "user", userID, "category", category.Name)
	return nil
}

// HandleText feeds a direct message from userID into their session
func (e *Engine) HandleText(ctx context.Context, userID, content string) (Outcome, error) {
	unlock := e.users.Lock(userID)
	defer unlock()

	s, ok := e.sessions.Get(userID)
	if !ok {
		return OutcomeIgnored, nil
	}

	if strings.EqualFold(strings.TrimSpace(content), cancelKeyword) {
		e.sessions.Remove(userID)
		slog.Info("application cancelled", "guild", s.GuildID, "user", userID, "category", s.CategoryName)
		e.notify(ctx, userID, platform.Notice{
			Title: "Application cancelled",
			Body:  fmt.Sprintf("Your application for **%s** was cancelled.", s.CategoryName),
			Kind:  platform.KindWarning,
		})
		return OutcomeCancelled, nil
	}

	q, ok := s.Current()
	if !ok || q.Type != models.QuestionText {
		return OutcomeIgnored, nil
	}
	return e.answer(ctx, s, content)
}

// HandleChoice feeds a yes/no button press from userID into their session.
// index is the zero-based question the button was shown for; a press from an
// older question is rejected without touching the session.
func (e *Engine) HandleChoice(ctx context.Context, userID string, index int, yes bool) (Outcome, error) {
	unlock := e.users.Lock(userID)
	defer unlock()

	s, ok := e.sessions.Get(userID)
	if !ok {
		return OutcomeIgnored, noActiveApplication(userID)
	}
	if index != s.CurrentIndex {
		return OutcomeIgnored, staleChoice(userID, index)
	}
	q, ok := s.Current()
	if !ok || q.Type != models.QuestionYesNo {
		return OutcomeIgnored, noActiveApplication(userID)
	}

	answer := "No"
	if yes {
		answer = "Yes"
	}
	return e.answer(ctx, s, answer)
}

// answer records one answer. The final answer is only kept once the
// application has been stored; until then the session stays on its last question.
func (e *Engine) answer(ctx context.Context, s models.Session, answer string) (Outcome, error) {
	next := s.Clone()
	next.Record(answer)

	if next.Done() {
		if err := e.submit(ctx, next); err != nil {
			return OutcomeIgnored, err
		}
		return OutcomeCompleted, nil
	}

	e.sessions.Advance(s.UserID, func(stored *models.Session) {
		stored.Record(answer)
	})
	if err := e.present(ctx, next); err != nil {
		return OutcomeAdvanced, err
	}
	return OutcomeAdvanced, nil
}

func (e *Engine) present(ctx context.Context, s models.Session) error {
	q, ok := s.Current()
	if !ok {
		return nil
	}
	return e.messenger.PresentQuestion(ctx, s.UserID, q, s.CurrentIndex+1, len(s.Questions))
}

// submit posts the finished application for staff and stores it. A failed
// post or store leaves the session in place so the last answer can be resent.
func (e *Engine) submit(ctx context.Context, s models.Session) error {
	cfg, err := e.store.LoadConfig(ctx, s.GuildID)
	if err != nil {
		return err
	}
	if cfg == nil || cfg.LogChannelID == "" {
		return notConfigured(s.GuildID)
	}

	app := models.Application{
		ID:              e.newID(),
		UserID:          s.UserID,
		UserDisplayName: s.DisplayName,
		Category:        s.CategoryName,
		Answers:         s.Answers,
		Status:          models.StatusPending,
		Timestamp:       e.now().UTC(),
	}

	ref, err := e.messenger.PostAwaitingReview(ctx, s.GuildID, cfg.LogChannelID, app)
	if err != nil {
		slog.Error("failed to post application", "guild", s.GuildID, "user", s.UserID, "err", err)
		return err
	}
	app.Message = ref

	if err := e.record(ctx, s, app); err != nil {
		slog.Error("failed to store application", "guild", s.GuildID, "application", app.ID, "err", err)
		if derr := e.messenger.DeleteMessage(ctx, ref); derr != nil {
			slog.Warn("failed to remove orphaned staff post", "guild", s.GuildID, "application", app.ID, "err", derr)
		}
		return err
	}

	e.sessions.Remove(s.UserID)
	slog.Info("application submitted", "guild", s.GuildID, "user", s.UserID, "application", app.ID, "category", app.Category)

	e.notify(ctx, s.UserID, platform.Notice{
		Title: "Application submitted",
		Body: fmt.Sprintf("Your application for **%s** in **%s** was submitted. Staff will review it soon.",
			s.CategoryName, s.GuildName),
		Kind: platform.KindSuccess,
	})
	return nil
}

// record appends app to the guild's applications and starts the cooldown.
// The cooldown write happens after the append; a crash between the two leaves
// a stored application without a cooldown entry.
func (e *Engine) record(ctx context.Context, s models.Session, app models.Application) error {
	unlock := e.guilds.Lock(s.GuildID)
	defer unlock()

	apps, err := e.store.LoadApplications(ctx, s.GuildID)
	if err != nil {
		return err
	}
	if err := e.store.SaveApplications(ctx, s.GuildID, append(apps, app)); err != nil {
		return err
	}

	if err := e.cooldowns.RecordSubmission(ctx, s.GuildID, s.UserID); err != nil {
		slog.Warn("failed to record cooldown", "guild", s.GuildID, "user", s.UserID, "err", err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, userID string, n platform.Notice) {
	if err := e.messenger.SendDirectMessage(ctx, userID, n); err != nil {
		slog.Warn("failed to notify applicant", "user", userID, "err", err)
	}
}

func notConfigured(guildID string) *errx.Error {
	return errx.New(errx.TypeNotConfigured, "NOT_CONFIGURED", "this server has not been set up yet").
		WithDetail("guild_id", guildID)
}

func inProgress(userID string) *errx.Error {
	return errx.New(errx.TypeConflict, "APPLICATION_IN_PROGRESS", "you already have an application in progress").
		WithDetail("user_id", userID)
}

func staleChoice(userID string, index int) *errx.Error {
	return errx.New(errx.TypeConflict, "ANSWER_OUTDATED", "that question was already answered").
		WithDetail("user_id", userID).
		WithDetail("question", index+1)
}

func noActiveApplication(userID string) *errx.Error {
	return errx.New(errx.TypeNotFound, "NO_ACTIVE_APPLICATION", "you have no active application").
		WithDetail("user_id", userID)
}
