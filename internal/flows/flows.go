// Package flows defines the typed prompt flows of the assistant on top of the generation gateway.
package flows

import (
	"context"

	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/generation"
)

// Generator is the subset of the generation gateway used by flows.
type Generator interface {
	Generate(ctx context.Context, prompt *generation.Prompt, input generation.Record) (generation.Record, error)
}

// Flows exposes one method per prompt.
type Flows struct {
	gen Generator
}

// New creates flows backed by gen.
func New(gen Generator) *Flows {
	return &Flows{gen: gen}
}

// GenerateRequirements turns an interview transcript into a requirements document.
func (f *Flows) GenerateRequirements(ctx context.Context, interactionText string) (domain.RequirementsDocument, error) {
	out, err := f.gen.Generate(ctx, requirementsPrompt, generation.Record{"interactionText": interactionText})
	if err != nil {
		return domain.RequirementsDocument{}, err
	}
	return domain.RequirementsDocument{
		Goal:          out["goal"],
		Description:   out["description"],
		Scope:         out["scope"],
		BusinessRules: out["businessRules"],
		KPIs:          out["kpis"],
	}, nil
}

// GenerateArtifacts turns a description of the business situation into analytical artifacts.
func (f *Flows) GenerateArtifacts(ctx context.Context, userInput string) (domain.AnalyticalArtifactSet, error) {
	out, err := f.gen.Generate(ctx, artifactsPrompt, generation.Record{"userInput": userInput})
	if err != nil {
		return domain.AnalyticalArtifactSet{}, err
	}
	return domain.AnalyticalArtifactSet{
		UseCases:          out["useCases"],
		ProcessDiagrams:   out["processDiagrams"],
		UserStories:       out["userStories"],
		LeadingIndicators: out["leadingIndicators"],
	}, nil
}

// SuggestImprovements returns process improvement suggestions for the given performance data.
func (f *Flows) SuggestImprovements(ctx context.Context, currentPerformanceData string) (string, error) {
	out, err := f.gen.Generate(ctx, suggestionsPrompt, generation.Record{"currentPerformanceData": currentPerformanceData})
	if err != nil {
		return "", err
	}
	return out["suggestions"], nil
}

// SummarizeRequirements condenses raw requirements text.
func (f *Flows) SummarizeRequirements(ctx context.Context, requirements string) (string, error) {
	out, err := f.gen.Generate(ctx, summaryPrompt, generation.Record{"requirements": requirements})
	if err != nil {
		return "", err
	}
	return out["summary"], nil
}
