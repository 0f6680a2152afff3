package models

import (
	"encoding/json"
	"testing"

	"github.com/korjavin/intakebot/errx"
)

func TestCategoryLegacyRoleID(t *testing.T) {
	var c Category
	data := `{"name":"Staff","description":"d","roleId":"r1","questions":[{"text":"Name?","type":"text"}]}`
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(c.RoleIDs) != 1 || c.RoleIDs[0] != "r1" {
		t.Errorf("RoleIDs = %v, want [r1]", c.RoleIDs)
	}
	if len(c.Questions) != 1 || c.Questions[0].Type != QuestionText {
		t.Errorf("Questions = %v", c.Questions)
	}

	var withList Category
	data = `{"name":"Staff","roleId":"old","roleIds":["a","b"]}`
	if err := json.Unmarshal([]byte(data), &withList); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(withList.RoleIDs) != 2 {
		t.Errorf("roleIds should win over roleId, got %v", withList.RoleIDs)
	}
}

func TestFindCategoryIgnoresCase(t *testing.T) {
	cfg := &GuildConfig{Categories: []Category{{Name: "Staff"}, {Name: "Event Team"}}}

	c, i := cfg.FindCategory("event team")
	if c == nil || i != 1 {
		t.Fatalf("FindCategory = %v, %d", c, i)
	}
	if c, _ := cfg.FindCategory("builders"); c != nil {
		t.Errorf("unexpected match %v", c)
	}
}

func TestSnapshotQuestionsIsIndependent(t *testing.T) {
	c := Category{Questions: []Question{{Text: "A", Type: QuestionText}}}
	snap := c.SnapshotQuestions()
	c.Questions[0].Text = "changed"
	if snap[0].Text != "A" {
		t.Errorf("snapshot changed with category: %q", snap[0].Text)
	}
}

func TestIsAdministrator(t *testing.T) {
	cfg := &GuildConfig{AdminRoleIDs: []string{"staff"}}
	tests := []struct {
		name   string
		member Member
		cfg    *GuildConfig
		want   bool
	}{
		{"platform admin", Member{Administrator: true}, nil, true},
		{"admin role", Member{RoleIDs: []string{"x", "staff"}}, cfg, true},
		{"no role", Member{RoleIDs: []string{"x"}}, cfg, false},
		{"no config", Member{RoleIDs: []string{"staff"}}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAdministrator(tt.member, tt.cfg); got != tt.want {
				t.Errorf("IsAdministrator = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveOnlyOnce(t *testing.T) {
	app := Application{ID: "1", Status: StatusPending}

	if err := app.Resolve(ActionAccept, "mod", "welcome"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if app.Status != StatusAccepted || app.ReviewedBy != "mod" || app.Reason != "welcome" {
		t.Errorf("unexpected record %+v", app)
	}

	err := app.Resolve(ActionDeny, "other", "no")
	if !errx.IsType(err, errx.TypeAlreadyReviewed) {
		t.Fatalf("second Resolve err = %v, want AlreadyReviewed", err)
	}
	if app.Status != StatusAccepted || app.ReviewedBy != "mod" {
		t.Errorf("second Resolve overwrote the record: %+v", app)
	}
}

func TestSessionRecordAndClone(t *testing.T) {
	s := Session{Questions: []Question{{Text: "Q1", Type: QuestionText}, {Text: "Q2", Type: QuestionYesNo}}}
	s.Record("a1")

	q, ok := s.Current()
	if !ok || q.Text != "Q2" {
		t.Fatalf("Current = %v, %v", q, ok)
	}

	c := s.Clone()
	c.Record("Yes")
	if len(s.Answers) != 1 || s.CurrentIndex != 1 {
		t.Errorf("clone mutation leaked: %+v", s)
	}
	if !c.Done() {
		t.Error("clone should be done after two answers")
	}
	c.Record("ignored")
	if len(c.Answers) != 2 {
		t.Errorf("Record past the end appended: %v", c.Answers)
	}
}

func TestMessageRefLink(t *testing.T) {
	ref := MessageRef{ChannelID: "c", MessageID: "m"}
	if got := ref.Link("g"); got != "https://discord.com/channels/g/c/m" {
		t.Errorf("Link = %q", got)
	}
	if (MessageRef{}).Link("g") != "" {
		t.Error("zero ref should have no link")
	}
}
