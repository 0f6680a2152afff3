package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/korjavin/intakebot/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PLATFORM", "DISCORD_TOKEN", "DISCORD_APP_ID", "TELEGRAM_TOKEN", "DEBUG", "HTTP_ADDR", "HTTP_API_KEY",
		"CATEGORY_TEMPLATE", "STORE_DRIVER", "DATA_DIR", "DB_PATH", "DATABASE_URL",
		"REDIS_ADDR", "REDIS_PASS", "S3_BUCKET", "S3_PREFIX", "AWS_REGION", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	// keep a stray .env in the package directory out of the way
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform != PlatformDiscord {
		t.Errorf("Platform = %q", cfg.Platform)
	}
	if cfg.Store.Driver != "file" || cfg.Store.DataDir != "./data" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing discord token", map[string]string{}},
		{"missing telegram token", map[string]string{"PLATFORM": "telegram"}},
		{"unknown platform", map[string]string{"PLATFORM": "irc", "DISCORD_TOKEN": "x"}},
		{"unknown store", map[string]string{"DISCORD_TOKEN": "x", "STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"DISCORD_TOKEN": "x", "STORE_DRIVER": "postgres"}},
		{"s3 without bucket", map[string]string{"DISCORD_TOKEN": "x", "STORE_DRIVER": "s3"}},
		{"bad log level", map[string]string{"DISCORD_TOKEN": "x", "LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("TELEGRAM_TOKEN")
	os.Unsetenv("PLATFORM")
	if err := os.WriteFile(".env", []byte("PLATFORM=telegram\nTELEGRAM_TOKEN=abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("TELEGRAM_TOKEN")
		os.Unsetenv("PLATFORM")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform != PlatformTelegram || cfg.TelegramToken != "abc" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDefaultTemplate(t *testing.T) {
	tpl := DefaultTemplate()
	if len(tpl.Setup) != 1 || tpl.Setup[0].Name != "Staff" {
		t.Fatalf("Setup = %+v", tpl.Setup)
	}
	if n := len(tpl.Setup[0].Questions); n != 5 {
		t.Errorf("Staff questions = %d, want 5", n)
	}
	if tpl.Setup[0].Questions[3].Type != models.QuestionYesNo {
		t.Errorf("question 4 type = %q", tpl.Setup[0].Questions[3].Type)
	}
	if len(tpl.NewCategory) != 3 {
		t.Errorf("NewCategory = %d questions", len(tpl.NewCategory))
	}
}

func TestLoadTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	data := "setup:\n  - name: Builders\n    description: Build things\n    role_ids: [r1]\n    questions:\n      - text: Show us your work\n        type: text\nnew_category: []\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	tpl, err := LoadTemplate(path)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if tpl.Setup[0].Name != "Builders" || tpl.Setup[0].RoleIDs[0] != "r1" {
		t.Errorf("Setup = %+v", tpl.Setup)
	}
}

func TestParseTemplateRejectsUnknownType(t *testing.T) {
	_, err := ParseTemplate([]byte("new_category:\n  - text: Q\n    type: multiple_choice\n"))
	if err == nil {
		t.Error("expected an error for an unknown question type")
	}
}
