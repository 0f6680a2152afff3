package models

import (
	"encoding/json"
	"strings"
)

// MaxQuestions is the largest number of questions a category may hold
const MaxQuestions = 20

// QuestionType selects how a question is presented and answered
type QuestionType string

const (
	QuestionText  QuestionType = "text"
	QuestionYesNo QuestionType = "yes_no"
)

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	return t == QuestionText || t == QuestionYesNo
}

// Label returns a human readable name for the type
func (t QuestionType) Label() string {
	if t == QuestionYesNo {
		return "Yes/No (Buttons)"
	}
	return "Text (Paragraph)"
}

// Question is one interview prompt
type Question struct {
	Text string       `json:"text" yaml:"text"`
	Type QuestionType `json:"type" yaml:"type"`
}

// Category is an application track such as "Staff"
type Category struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	RoleIDs     []string   `json:"roleIds" yaml:"role_ids"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// UnmarshalJSON folds the legacy single roleId field into RoleIDs
func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	var raw struct {
		plain
		RoleID *string `json:"roleId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Category(raw.plain)
	if len(c.RoleIDs) == 0 && raw.RoleID != nil && *raw.RoleID != "" {
		c.RoleIDs = []string{*raw.RoleID}
	}
	return nil
}

// SnapshotQuestions returns a copy of the question list so later edits to the
// category never reach an interview already in flight
func (c *Category) SnapshotQuestions() []Question {
	out := make([]Question, len(c.Questions))
	copy(out, c.Questions)
	return out
}

// SameName compares category names case-insensitively
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
