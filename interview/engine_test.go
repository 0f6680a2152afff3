package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/korjavin/intakebot/cooldown"
	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/keylock"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform/platformtest"
	"github.com/korjavin/intakebot/session"
)

// flakyBackend fails writes of one document kind while fail is set
type flakyBackend struct {
	*database.Memory
	mu   sync.Mutex
	kind database.Kind
	fail bool
}

func (b *flakyBackend) Put(ctx context.Context, guildID string, kind database.Kind, data []byte) error {
	b.mu.Lock()
	fail := b.fail && kind == b.kind
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.Memory.Put(ctx, guildID, kind, data)
}

func (b *flakyBackend) setFail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

type fixture struct {
	engine   *Engine
	store    *database.Documents
	backend  *flakyBackend
	sessions *session.Memory
	fake     *platformtest.Fake
	now      time.Time
}

var staffQuestions = []models.Question{
	{Text: "What is your name?", Type: models.QuestionText},
	{Text: "Prior experience?", Type: models.QuestionYesNo},
}

func newFixture(t *testing.T, questions []models.Question) *fixture {
	t.Helper()
	backend := &flakyBackend{Memory: database.NewMemory(), kind: database.KindApplications}
	store := database.NewDocuments(backend)
	cfg := &models.GuildConfig{
		GuildID:       "g",
		LogChannelID:  "log",
		AdminRoleIDs:  []string{"admins"},
		CooldownHours: 24,
		Categories: []models.Category{
			{Name: "Staff", Questions: questions},
			{Name: "Empty"},
		},
	}
	if err := store.SaveConfig(context.Background(), "g", cfg); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sessions := session.NewMemory()
	fake := platformtest.New()
	var ids atomic.Int64
	engine := New(store, sessions, cooldown.New(store).WithClock(clock), fake, &keylock.Map{}).
		WithClock(clock).
		WithIDs(func() string { return fmt.Sprintf("app-%d", ids.Add(1)) })

	return &fixture{engine: engine, store: store, backend: backend, sessions: sessions, fake: fake, now: now}
}

func (f *fixture) start(t *testing.T, userID string) {
	t.Helper()
	err := f.engine.Start(context.Background(), StartRequest{
		GuildID:      "g",
		GuildName:    "Test Guild",
		Member:       models.Member{UserID: userID, DisplayName: "Jane#0001"},
		CategoryName: "staff",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (f *fixture) applications(t *testing.T) []models.Application {
	t.Helper()
	apps, err := f.store.LoadApplications(context.Background(), "g")
	if err != nil {
		t.Fatal(err)
	}
	return apps
}

func TestEndToEndStaffApplication(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.start(t, "u")

	if len(f.fake.Prompts) != 1 || f.fake.Prompts[0].Number != 1 || f.fake.Prompts[0].Total != 2 {
		t.Fatalf("prompts after start = %+v", f.fake.Prompts)
	}

	out, err := f.engine.HandleText(ctx, "u", "Jane")
	if err != nil || out != OutcomeAdvanced {
		t.Fatalf("HandleText = %v, %v", out, err)
	}
	out, err = f.engine.HandleChoice(ctx, "u", 1, true)
	if err != nil || out != OutcomeCompleted {
		t.Fatalf("HandleChoice = %v, %v", out, err)
	}

	apps := f.applications(t)
	if len(apps) != 1 {
		t.Fatalf("stored %d applications", len(apps))
	}
	app := apps[0]
	want := []models.Answer{
		{Question: "What is your name?", Answer: "Jane"},
		{Question: "Prior experience?", Answer: "Yes"},
	}
	if len(app.Answers) != 2 || app.Answers[0] != want[0] || app.Answers[1] != want[1] {
		t.Errorf("answers = %+v", app.Answers)
	}
	if app.Status != models.StatusPending || app.Category != "Staff" || app.UserDisplayName != "Jane#0001" {
		t.Errorf("record = %+v", app)
	}
	if app.Message.IsZero() || !app.Timestamp.Equal(f.now) {
		t.Errorf("record missing message ref or timestamp: %+v", app)
	}

	if f.engine.Active("u") {
		t.Error("session still active after completion")
	}
	cds, _ := f.store.LoadCooldowns(ctx, "g")
	if !cds["u"].Equal(f.now) {
		t.Errorf("cooldown = %v", cds["u"])
	}
	if len(f.fake.Posts) != 1 {
		t.Errorf("staff posts = %d", len(f.fake.Posts))
	}
}

func TestExactlyNAnswersMakeOneRecord(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			var questions []models.Question
			for i := 0; i < n; i++ {
				typ := models.QuestionText
				if i%2 == 1 {
					typ = models.QuestionYesNo
				}
				questions = append(questions, models.Question{Text: fmt.Sprintf("Q%d", i), Type: typ})
			}
			f := newFixture(t, questions)
			ctx := context.Background()
			f.start(t, "u")

			for i, q := range questions {
				var (
					out Outcome
					err error
				)
				if q.Type == models.QuestionYesNo {
					out, err = f.engine.HandleChoice(ctx, "u", i, false)
				} else {
					out, err = f.engine.HandleText(ctx, "u", "answer")
				}
				if err != nil {
					t.Fatalf("answer %d: %v", i, err)
				}
				if i < n-1 && out != OutcomeAdvanced || i == n-1 && out != OutcomeCompleted {
					t.Fatalf("answer %d outcome = %v", i, out)
				}
			}

			apps := f.applications(t)
			if len(apps) != 1 || len(apps[0].Answers) != n || apps[0].Status != models.StatusPending {
				t.Errorf("apps = %+v", apps)
			}
		})
	}
}

func TestCancelAtAnyQuestion(t *testing.T) {
	for _, keyword := range []string{"cancel", "CANCEL", "  Cancel "} {
		for answered := 0; answered < 2; answered++ {
			t.Run(fmt.Sprintf("%q after %d", keyword, answered), func(t *testing.T) {
				f := newFixture(t, staffQuestions)
				ctx := context.Background()
				f.start(t, "u")
				if answered > 0 {
					f.engine.HandleText(ctx, "u", "Jane")
				}

				out, err := f.engine.HandleText(ctx, "u", keyword)
				if err != nil || out != OutcomeCancelled {
					t.Fatalf("HandleText(cancel) = %v, %v", out, err)
				}
				if f.engine.Active("u") {
					t.Error("session survived cancel")
				}
				if len(f.applications(t)) != 0 {
					t.Error("cancel produced an application")
				}
				dms := f.fake.DMsTo("u")
				if last := dms[len(dms)-1]; last.Notice.Title != "Application cancelled" {
					t.Errorf("last DM = %+v", last)
				}
			})
		}
	}
}

func TestChoiceOnTextQuestionIsRejected(t *testing.T) {
	f := newFixture(t, staffQuestions)
	f.start(t, "u")

	_, err := f.engine.HandleChoice(context.Background(), "u", 0, true)
	if !errx.IsType(err, errx.TypeNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	s, _ := f.sessions.Get("u")
	if s.CurrentIndex != 0 || len(s.Answers) != 0 {
		t.Errorf("session changed: %+v", s)
	}
}

func TestRepeatedChoiceDoesNotAnswerNextQuestion(t *testing.T) {
	f := newFixture(t, []models.Question{
		{Text: "Over 18?", Type: models.QuestionYesNo},
		{Text: "Prior experience?", Type: models.QuestionYesNo},
		{Text: "Name?", Type: models.QuestionText},
	})
	ctx := context.Background()
	f.start(t, "u")

	if out, err := f.engine.HandleChoice(ctx, "u", 0, false); err != nil || out != OutcomeAdvanced {
		t.Fatalf("first press = %v, %v", out, err)
	}
	// the same button pressed again
	out, err := f.engine.HandleChoice(ctx, "u", 0, false)
	if !errx.IsType(err, errx.TypeConflict) || out != OutcomeIgnored {
		t.Fatalf("second press = %v, %v, want Conflict", out, err)
	}
	s, _ := f.sessions.Get("u")
	if s.CurrentIndex != 1 || len(s.Answers) != 1 {
		t.Fatalf("session changed by the second press: %+v", s)
	}

	f.engine.HandleChoice(ctx, "u", 1, true)
	f.engine.HandleText(ctx, "u", "Jane")

	apps := f.applications(t)
	if len(apps) != 1 {
		t.Fatalf("stored %d applications", len(apps))
	}
	want := []string{"No", "Yes", "Jane"}
	for n, a := range apps[0].Answers {
		if a.Answer != want[n] {
			t.Errorf("answer %d = %q, want %q", n+1, a.Answer, want[n])
		}
	}
}

func TestChoiceFromLaterQuestionIsRejected(t *testing.T) {
	f := newFixture(t, []models.Question{
		{Text: "Over 18?", Type: models.QuestionYesNo},
		{Text: "Prior experience?", Type: models.QuestionYesNo},
	})
	f.start(t, "u")

	if _, err := f.engine.HandleChoice(context.Background(), "u", 1, true); !errx.IsType(err, errx.TypeConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	if s, _ := f.sessions.Get("u"); s.CurrentIndex != 0 {
		t.Errorf("session moved: %+v", s)
	}
}

func TestEmptyTextAnswerIsRecorded(t *testing.T) {
	f := newFixture(t, []models.Question{
		{Text: "Name?", Type: models.QuestionText},
		{Text: "Portfolio?", Type: models.QuestionText},
	})
	ctx := context.Background()
	f.start(t, "u")

	// an attachment-only message arrives with no text
	if out, err := f.engine.HandleText(ctx, "u", ""); err != nil || out != OutcomeAdvanced {
		t.Fatalf("HandleText(empty) = %v, %v", out, err)
	}
	f.engine.HandleText(ctx, "u", "   ")

	apps := f.applications(t)
	if len(apps) != 1 || apps[0].Answers[0].Answer != "" || apps[0].Answers[1].Answer != "   " {
		t.Errorf("apps = %+v", apps)
	}
}

func TestChoiceWithoutSession(t *testing.T) {
	f := newFixture(t, staffQuestions)
	_, err := f.engine.HandleChoice(context.Background(), "nobody", 0, true)
	if !errx.IsType(err, errx.TypeNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestTextOnYesNoQuestionIsIgnored(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.start(t, "u")
	f.engine.HandleText(ctx, "u", "Jane")

	out, err := f.engine.HandleText(ctx, "u", "yes I have")
	if err != nil || out != OutcomeIgnored {
		t.Fatalf("HandleText = %v, %v", out, err)
	}
	s, _ := f.sessions.Get("u")
	if s.CurrentIndex != 1 || len(s.Answers) != 1 {
		t.Errorf("session changed: %+v", s)
	}
}

func TestTextWithoutSessionIsIgnored(t *testing.T) {
	f := newFixture(t, staffQuestions)
	out, err := f.engine.HandleText(context.Background(), "u", "hello")
	if err != nil || out != OutcomeIgnored {
		t.Errorf("HandleText = %v, %v", out, err)
	}
}

func TestSecondStartIsRejected(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.start(t, "u")
	f.engine.HandleText(ctx, "u", "Jane")

	err := f.engine.Start(ctx, StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Staff"})
	if !errx.IsType(err, errx.TypeConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	s, _ := f.sessions.Get("u")
	if s.CurrentIndex != 1 || len(s.Answers) != 1 {
		t.Errorf("existing session altered: %+v", s)
	}
}

func TestStartErrors(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()

	tests := []struct {
		name string
		req  StartRequest
		want errx.Type
	}{
		{"unconfigured guild", StartRequest{GuildID: "other", Member: models.Member{UserID: "u"}, CategoryName: "Staff"}, errx.TypeNotConfigured},
		{"unknown category", StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Builders"}, errx.TypeNotFound},
		{"no questions", StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Empty"}, errx.TypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.Start(ctx, tt.req)
			if !errx.IsType(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
			if f.sessions.Len() != 0 {
				t.Error("failed start left a session")
			}
		})
	}
}

func TestStartBlockedDMLeavesNoSession(t *testing.T) {
	f := newFixture(t, staffQuestions)
	f.fake.BlockedUsers["u"] = true

	err := f.engine.Start(context.Background(), StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Staff"})
	if !errx.IsType(err, errx.TypeDeliveryBlocked) {
		t.Fatalf("err = %v, want DeliveryBlocked", err)
	}
	if f.engine.Active("u") {
		t.Error("session created despite blocked DM")
	}
}

func TestStartFirstQuestionBlockedLeavesNoSession(t *testing.T) {
	f := newFixture(t, staffQuestions)
	f.fake.BlockPrompts = true

	err := f.engine.Start(context.Background(), StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Staff"})
	if !errx.IsType(err, errx.TypeDeliveryBlocked) {
		t.Fatalf("err = %v, want DeliveryBlocked", err)
	}
	if f.engine.Active("u") {
		t.Error("session left behind")
	}
}

func TestCooldownBlocksStartButNotAdmins(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.store.SaveCooldowns(ctx, "g", models.Cooldowns{"u": f.now.Add(-10 * time.Hour)})

	err := f.engine.Start(ctx, StartRequest{GuildID: "g", Member: models.Member{UserID: "u"}, CategoryName: "Staff"})
	e, ok := errx.As(err)
	if !ok || e.Type != errx.TypeCooldown || e.Detail("hours_remaining") != 14 {
		t.Fatalf("err = %v, want cooldown with 14 hours", err)
	}

	admin := models.Member{UserID: "u", RoleIDs: []string{"admins"}}
	if err := f.engine.Start(ctx, StartRequest{GuildID: "g", Member: admin, CategoryName: "Staff"}); err != nil {
		t.Errorf("admin Start: %v", err)
	}
}

func TestPersistenceFailureKeepsSession(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.start(t, "u")
	f.engine.HandleText(ctx, "u", "Jane")

	f.backend.setFail(true)
	_, err := f.engine.HandleChoice(ctx, "u", 1, true)
	if !errx.IsType(err, errx.TypePersistence) {
		t.Fatalf("err = %v, want PersistenceFailure", err)
	}
	s, ok := f.sessions.Get("u")
	if !ok || s.CurrentIndex != 1 || len(s.Answers) != 1 {
		t.Fatalf("session not preserved at last question: %+v, %v", s, ok)
	}
	if len(f.fake.Deleted) != 1 {
		t.Errorf("orphaned staff post not removed: %v", f.fake.Deleted)
	}
	cds, _ := f.store.LoadCooldowns(ctx, "g")
	if _, ok := cds["u"]; ok {
		t.Error("cooldown recorded for a failed submission")
	}

	// the same answer goes through once storage recovers
	f.backend.setFail(false)
	out, err := f.engine.HandleChoice(ctx, "u", 1, true)
	if err != nil || out != OutcomeCompleted {
		t.Fatalf("retry = %v, %v", out, err)
	}
	if apps := f.applications(t); len(apps) != 1 || len(apps[0].Answers) != 2 {
		t.Errorf("apps = %+v", apps)
	}
}

func TestPostFailureKeepsSession(t *testing.T) {
	f := newFixture(t, []models.Question{{Text: "Name?", Type: models.QuestionText}})
	ctx := context.Background()
	f.start(t, "u")
	f.fake.FailPost = true

	if _, err := f.engine.HandleText(ctx, "u", "Jane"); !errx.IsType(err, errx.TypePermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if !f.engine.Active("u") || len(f.applications(t)) != 0 {
		t.Error("failed post must keep the session and store nothing")
	}
}

func TestEditingCategoryDoesNotAffectSession(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()
	f.start(t, "u")

	cfg, _ := f.store.LoadConfig(ctx, "g")
	cfg.Categories[0].Questions = []models.Question{{Text: "Replaced", Type: models.QuestionText}}
	f.store.SaveConfig(ctx, "g", cfg)

	f.engine.HandleText(ctx, "u", "Jane")
	f.engine.HandleChoice(ctx, "u", 1, false)

	apps := f.applications(t)
	if len(apps) != 1 || apps[0].Answers[1].Question != "Prior experience?" || apps[0].Answers[1].Answer != "No" {
		t.Errorf("apps = %+v", apps)
	}
}

func TestUsersInParallel(t *testing.T) {
	f := newFixture(t, staffQuestions)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		userID := fmt.Sprintf("u%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.Start(ctx, StartRequest{GuildID: "g", Member: models.Member{UserID: userID}, CategoryName: "Staff"})
			f.engine.HandleText(ctx, userID, userID)
			f.engine.HandleChoice(ctx, userID, 1, true)
		}()
	}
	wg.Wait()

	apps := f.applications(t)
	if len(apps) != 10 {
		t.Fatalf("stored %d applications, want 10", len(apps))
	}
	for _, app := range apps {
		if app.Answers[0].Answer != app.UserID {
			t.Errorf("answers crossed between users: %+v", app)
		}
	}
	cds, _ := f.store.LoadCooldowns(ctx, "g")
	if len(cds) != 10 {
		t.Errorf("cooldowns = %d, want 10", len(cds))
	}
}
