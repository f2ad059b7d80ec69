// Package conversation implements the scripted interview a user walks through before
// documents are generated.
package conversation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultQuestions = []string{
	"Hello! I'm AnalystAI. To start, what business process or feature are we looking to define today?",
	"Great. What is the primary goal or objective of this initiative?",
	"Understood. Could you provide a more detailed description of what you envision?",
	"What would you consider to be in scope and out of scope for this project?",
	"Are there any specific business rules, policies, or constraints we need to consider?",
	"How will we measure success? What are the Key Performance Indicators (KPIs)?",
	"Thank you. This is a great start. I have enough information to generate the initial documents. Click 'Finalize Requirements' when you're ready.",
}

var errEmptyScript = errors.New("script must contain at least one question")

// Script is an immutable ordered list of assistant questions. The last entry is the
// closing message shown once every answer is collected.
type Script struct {
	questions []string
}

// NewScript validates and copies questions.
func NewScript(questions []string) (*Script, error) {
	if len(questions) == 0 {
		return nil, errEmptyScript
	}
	qs := make([]string, len(questions))
	for i, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("question %d is blank", i+1)
		}
		qs[i] = q
	}
	return &Script{questions: qs}, nil
}

// DefaultScript returns the built-in seven-question interview.
func DefaultScript() *Script {
	s, _ := NewScript(defaultQuestions)
	return s
}

type scriptFile struct {
	Questions []string `yaml:"questions"`
}

// LoadScript reads a script from a YAML file with a top-level questions list.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	s, err := NewScript(f.Questions)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}

// Len returns the number of questions.
func (s *Script) Len() int {
	return len(s.questions)
}

// Question returns question i.
func (s *Script) Question(i int) string {
	return s.questions[i]
}

// Questions returns a copy of all questions.
func (s *Script) Questions() []string {
	out := make([]string, len(s.questions))
	copy(out, s.questions)
	return out
}

// last is the cursor position at which all answers are collected.
func (s *Script) last() int {
	return len(s.questions) - 1
}
