package flows

import "github.com/ashureev/analystai/internal/generation"

// Prompt names double as metric labels.
const (
	RequirementsPrompt = "requirements_document"
	ArtifactsPrompt    = "analytical_artifacts"
	SuggestionsPrompt  = "improvement_suggestions"
	SummaryPrompt      = "requirements_summary"
)

// MinPerformanceDataLength is the minimum rune count of performance data accepted for suggestions.
const MinPerformanceDataLength = 10

var requirementsPrompt = generation.MustPrompt(RequirementsPrompt,
	generation.Shape{Name: "RequirementsInput", Fields: []generation.Field{
		{Name: "interactionText", Description: "The full interview transcript between the assistant and the employee."},
	}},
	generation.Shape{Name: "RequirementsDocument", Fields: []generation.Field{
		{Name: "goal", Description: "The primary goal of the business requirement."},
		{Name: "description", Description: "A detailed description of the requirement."},
		{Name: "scope", Description: "What is in and out of scope for the requirement."},
		{Name: "businessRules", Description: "The business rules and policies that govern the requirement."},
		{Name: "kpis", Description: "Key performance indicators that measure the success of the requirement."},
	}},
	`You are a business analyst drafting a business requirements document from an interview with a bank employee.
Read the interview below and extract what is needed for each section of the document.

Interview:
{{.interactionText}}

Write the goal, description, scope, business rules and KPIs. Keep every section clear and concise,
and only state facts supported by the interview.`,
)

var artifactsPrompt = generation.MustPrompt(ArtifactsPrompt,
	generation.Shape{Name: "ArtifactsInput", Fields: []generation.Field{
		{Name: "userInput", Description: "A description of the business situation."},
	}},
	generation.Shape{Name: "AnalyticalArtifactSet", Fields: []generation.Field{
		{Name: "useCases", Description: "Use cases derived from the business situation."},
		{Name: "processDiagrams", Description: "Textual process diagrams of the affected workflows."},
		{Name: "userStories", Description: "User stories in the form 'As a ..., I want ..., so that ...'."},
		{Name: "leadingIndicators", Description: "Leading indicators that signal progress early."},
	}},
	`You are a senior business analyst. From the business situation below, produce analytical artifacts:
use cases, process diagrams, user stories and leading indicators.

Business situation:
{{.userInput}}

Label each item clearly inside its field.`,
)

var suggestionsPrompt = generation.MustPrompt(SuggestionsPrompt,
	generation.Shape{Name: "SuggestionsInput", Fields: []generation.Field{
		{
			Name:        "currentPerformanceData",
			Description: "Current performance data of the business analyst team.",
			MinLength:   MinPerformanceDataLength,
			Message:     "Please provide more detailed performance data.",
		},
	}},
	generation.Shape{Name: "Suggestions", Fields: []generation.Field{
		{Name: "suggestions", Description: "Concrete suggestions that improve business processes and reduce workload."},
	}},
	`You are a business process improvement consultant.
Using the performance data of the business analyst team below, suggest concrete ways to improve
their processes and reduce their workload.

Performance data:
{{.currentPerformanceData}}`,
)

var summaryPrompt = generation.MustPrompt(SummaryPrompt,
	generation.Shape{Name: "SummaryInput", Fields: []generation.Field{
		{Name: "requirements", Description: "Raw business requirements gathered from interviews."},
	}},
	generation.Shape{Name: "Summary", Fields: []generation.Field{
		{Name: "summary", Description: "A concise summary of the business requirements."},
	}},
	`You are a business analyst. Write a concise summary of the following business requirements:

{{.requirements}}`,
)
