package telegram

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

func TestPresentYesNoQuestion(t *testing.T) {
	fake := newFakeClient()
	p := NewPlatform(fake)

	q := models.Question{Text: "Any experience?", Type: models.QuestionYesNo}
	if err := p.PresentQuestion(context.Background(), "42", q, 4, 5); err != nil {
		t.Fatalf("PresentQuestion: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.ChatID != 42 || !strings.Contains(msg.Text, "Question 4/5") {
		t.Errorf("message = %+v", msg)
	}
	kb, ok := msg.Markup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %#v", msg.Markup)
	}
	if data := *kb.InlineKeyboard[0][0].CallbackData; data != "answer:yes:3" {
		t.Errorf("yes button data = %q", data)
	}
}

func TestTextQuestionHasNoKeyboard(t *testing.T) {
	fake := newFakeClient()
	p := NewPlatform(fake)

	q := models.Question{Text: "Name?", Type: models.QuestionText}
	if err := p.PresentQuestion(context.Background(), "42", q, 1, 2); err != nil {
		t.Fatalf("PresentQuestion: %v", err)
	}
	if fake.messages[0].Markup != nil {
		t.Errorf("text question has markup %#v", fake.messages[0].Markup)
	}
}

func TestBlockedDirectMessage(t *testing.T) {
	fake := newFakeClient()
	fake.blocked[42] = true
	p := NewPlatform(fake)

	err := p.SendDirectMessage(context.Background(), "42", platform.Notice{Body: "hi"})
	if !errx.IsType(err, errx.TypeDeliveryBlocked) {
		t.Errorf("err = %v, want DeliveryBlocked", err)
	}
	err = p.SendDirectMessage(context.Background(), "not-a-number", platform.Notice{Body: "hi"})
	if !errx.IsType(err, errx.TypeDeliveryBlocked) {
		t.Errorf("err = %v, want DeliveryBlocked for a bad user id", err)
	}
}

func TestMarkdownFallback(t *testing.T) {
	fake := newFakeClient()
	fake.rejectMarkup = true
	p := NewPlatform(fake)

	if err := p.SendChannelMessage(context.Background(), "-100", platform.Notice{Title: "Hi", Body: "there"}); err != nil {
		t.Fatalf("SendChannelMessage: %v", err)
	}
	if len(fake.messages) != 1 || fake.messages[0].ParseMode != "" || fake.messages[0].Text != "Hi\n\nthere" {
		t.Errorf("messages = %+v", fake.messages)
	}
}

func TestLongApplicationIsSplitAndDeleted(t *testing.T) {
	fake := newFakeClient()
	p := NewPlatform(fake)
	ctx := context.Background()

	app := models.Application{ID: "a1", UserID: "7", UserDisplayName: "jane", Category: "Staff", Timestamp: time.Now()}
	for i := 0; i < 10; i++ {
		app.Answers = append(app.Answers, models.Answer{Question: "Tell us more", Answer: strings.Repeat("word ", 100)})
	}

	ref, err := p.PostAwaitingReview(ctx, "-100", "-100", app)
	if err != nil {
		t.Fatalf("PostAwaitingReview: %v", err)
	}
	if len(fake.messages) < 2 {
		t.Fatalf("long application sent as %d message(s)", len(fake.messages))
	}
	if ref.ChannelID != "-100" || ref.MessageID != "1" {
		t.Errorf("ref = %+v, want the first part", ref)
	}
	if _, ok := fake.messages[0].Markup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Error("first part should carry the history button")
	}
	if fake.messages[1].Markup != nil {
		t.Error("continuation parts should not carry buttons")
	}

	if err := p.DeleteMessage(ctx, ref); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if len(fake.deleted) != len(fake.messages) {
		t.Errorf("deleted %v, want all %d parts", fake.deleted, len(fake.messages))
	}
}

func TestFailedPartDeleteIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	fake := newFakeClient()
	p := NewPlatform(fake)
	ctx := context.Background()

	app := models.Application{ID: "a1", UserID: "7", Category: "Staff", Timestamp: time.Now()}
	for i := 0; i < 10; i++ {
		app.Answers = append(app.Answers, models.Answer{Question: "Tell us more", Answer: strings.Repeat("word ", 100)})
	}
	ref, err := p.PostAwaitingReview(ctx, "-100", "-100", app)
	if err != nil {
		t.Fatalf("PostAwaitingReview: %v", err)
	}
	fake.failDeletes[2] = true

	if err := p.DeleteMessage(ctx, ref); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if !strings.Contains(logs.String(), "failed to delete application post part") || !strings.Contains(logs.String(), "message=2") {
		t.Errorf("cleanup failure not logged:\n%s", logs.String())
	}
	for _, id := range fake.deleted {
		if id == 2 {
			t.Error("failed delete recorded as done")
		}
	}
	if len(fake.deleted) != len(fake.messages)-1 {
		t.Errorf("deleted %v, want every part but the failing one", fake.deleted)
	}
}

func TestMarkReviewedEditsFirstPart(t *testing.T) {
	fake := newFakeClient()
	p := NewPlatform(fake)

	app := models.Application{ID: "a1", Category: "Staff", Status: models.StatusAccepted, Reason: "welcome"}
	ref := models.MessageRef{ChannelID: "-100", MessageID: "9"}
	if err := p.MarkReviewed(context.Background(), ref, app, "mod"); err != nil {
		t.Fatalf("MarkReviewed: %v", err)
	}
	if len(fake.edits) != 1 || fake.edits[0].MessageID != 9 || !strings.Contains(fake.edits[0].Text, "Accepted") {
		t.Errorf("edits = %+v", fake.edits)
	}
}

func TestGrantRoleSendsInvite(t *testing.T) {
	fake := newFakeClient()
	p := NewPlatform(fake)
	ctx := context.Background()

	if err := p.GrantRole(ctx, "-100", "7", "-200"); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if len(fake.invites) != 1 || fake.invites[0].ChatID != -200 || fake.invites[0].MemberLimit != 1 {
		t.Errorf("invites = %+v", fake.invites)
	}
	if !strings.Contains(fake.lastTo(7), "https://t.me/+invite") {
		t.Errorf("invite not sent to the member: %q", fake.lastTo(7))
	}

	fake.missingChats[-300] = true
	if err := p.GrantRole(ctx, "-100", "7", "-300"); !errx.IsType(err, errx.TypeNotFound) {
		t.Errorf("missing chat err = %v, want NotFound", err)
	}
	if err := p.GrantRole(ctx, "-100", "7", "role-name"); !errx.IsType(err, errx.TypeNotFound) {
		t.Errorf("bad role id err = %v, want NotFound", err)
	}
}

func TestTicketsUnsupported(t *testing.T) {
	p := NewPlatform(newFakeClient())
	ctx := context.Background()

	if _, err := p.CreatePrivateChannel(ctx, "-100", "", "ticket-jane", platform.Audience{}); !errx.IsType(err, errx.TypePermissionDenied) {
		t.Errorf("CreatePrivateChannel err = %v", err)
	}
	if _, ok, err := p.FindChannel(ctx, "-100", "", "ticket-jane"); ok || err != nil {
		t.Errorf("FindChannel = %v, %v", ok, err)
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Title**\n\nbody.", "*Title*\n\nbody\\."},
		{"a_b (c)", "a\\_b \\(c\\)"},
		{"**unbalanced", "unbalanced"},
	}
	for _, tt := range tests {
		if got := markdown(tt.in); got != tt.want {
			t.Errorf("markdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
