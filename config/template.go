package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/korjavin/intakebot/models"
)

const defaultTemplateYAML = `# categories created by setup
setup:
  - name: Staff
    description: Apply to become a staff member
    questions:
      - text: What is your name?
        type: text
      - text: How old are you?
        type: text
      - text: Why do you want to join the staff team?
        type: text
      - text: Do you have any previous staff experience?
        type: yes_no
      - text: How many hours per week can you dedicate?
        type: text

# questions every new category starts with
new_category:
  - text: What is your name?
    type: text
  - text: Why do you want to apply for this position?
    type: text
  - text: Do you have any relevant experience?
    type: yes_no
`

// Template holds the starter content for guild configuration
type Template struct {
	Setup       []models.Category `yaml:"setup"`
	NewCategory []models.Question `yaml:"new_category"`
}

// DefaultTemplate returns the built-in template
func DefaultTemplate() *Template {
	t, err := ParseTemplate([]byte(defaultTemplateYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in category template: %v", err))
	}
	return t
}

// LoadTemplate reads a YAML template from path, or the built-in one when path is empty
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category template: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes and validates a YAML template
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse category template: %w", err)
	}
	for _, c := range t.Setup {
		if c.Name == "" {
			return nil, fmt.Errorf("category template: setup category without a name")
		}
		if err := validateQuestions(c.Questions); err != nil {
			return nil, fmt.Errorf("category template %q: %w", c.Name, err)
		}
	}
	if err := validateQuestions(t.NewCategory); err != nil {
		return nil, fmt.Errorf("category template new_category: %w", err)
	}
	return &t, nil
}

func validateQuestions(qs []models.Question) error {
	if len(qs) > models.MaxQuestions {
		return fmt.Errorf("%d questions, at most %d allowed", len(qs), models.MaxQuestions)
	}
	for i, q := range qs {
		if !q.Type.Valid() {
			return fmt.Errorf("question %d has unknown type %q", i+1, q.Type)
		}
	}
	return nil
}
