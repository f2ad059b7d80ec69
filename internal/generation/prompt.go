package generation

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt binds generation instructions to an input and an output shape.
type Prompt struct {
	Name   string
	Input  Shape
	Output Shape

	instructions *template.Template
}

// NewPrompt parses instructions as a text/template over the input record.
// Input fields are referenced as {{.fieldName}}; unknown keys fail at render time.
func NewPrompt(name string, input, output Shape, instructions string) (*Prompt, error) {
	if name == "" {
		return nil, fmt.Errorf("prompt name is required")
	}
	if len(output.Fields) == 0 {
		return nil, fmt.Errorf("prompt %s: output shape has no fields", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(instructions)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return &Prompt{Name: name, Input: input, Output: output, instructions: tmpl}, nil
}

// MustPrompt is NewPrompt for package-level prompt definitions.
func MustPrompt(name string, input, output Shape, instructions string) *Prompt {
	p, err := NewPrompt(name, input, output, instructions)
	if err != nil {
		panic(err)
	}
	return p
}

// Render executes the instructions against input.
func (p *Prompt) Render(input Record) (string, error) {
	data := make(map[string]string, len(input))
	for k, v := range input {
		data[k] = v
	}
	var sb strings.Builder
	if err := p.instructions.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", p.Name, err)
	}
	return sb.String(), nil
}

// systemMessage tells the model to answer with a single JSON object of the output shape.
func (p *Prompt) systemMessage() string {
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object and nothing else.\n")
	sb.WriteString("The object must contain exactly these string fields, all non-empty:\n")
	for _, f := range p.Output.Fields {
		sb.WriteString("- ")
		sb.WriteString(f.Name)
		if f.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(f.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Use plain text inside each field; separate list items with newlines.")
	return sb.String()
}
