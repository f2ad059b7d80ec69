package domain

import (
	"fmt"
	"strings"
)

// RequirementsDocument is the business requirements document produced from a transcript.
type RequirementsDocument struct {
	Goal          string `json:"goal"`
	Description   string `json:"description"`
	Scope         string `json:"scope"`
	BusinessRules string `json:"businessRules"`
	KPIs          string `json:"kpis"`
}

// AnalyticalArtifactSet holds the analytical artifacts derived from a transcript.
type AnalyticalArtifactSet struct {
	UseCases          string `json:"useCases"`
	ProcessDiagrams   string `json:"processDiagrams"`
	UserStories       string `json:"userStories"`
	LeadingIndicators string `json:"leadingIndicators"`
}

// DocumentBundle pairs the two generated documents of one finalize action.
type DocumentBundle struct {
	Requirements RequirementsDocument  `json:"requirements"`
	Artifacts    AnalyticalArtifactSet `json:"artifacts"`
}

// Section is a titled block of generated text, in display order.
type Section struct {
	Group   string
	Title   string
	Content string
}

// Sections flattens the bundle into its nine titled sections.
func (b *DocumentBundle) Sections() []Section {
	const (
		reqGroup = "Business Requirements Document"
		artGroup = "Analytical Artifacts"
	)
	return []Section{
		{Group: reqGroup, Title: "Goal", Content: b.Requirements.Goal},
		{Group: reqGroup, Title: "Description", Content: b.Requirements.Description},
		{Group: reqGroup, Title: "Scope", Content: b.Requirements.Scope},
		{Group: reqGroup, Title: "Business Rules", Content: b.Requirements.BusinessRules},
		{Group: reqGroup, Title: "KPIs", Content: b.Requirements.KPIs},
		{Group: artGroup, Title: "Use Cases", Content: b.Artifacts.UseCases},
		{Group: artGroup, Title: "User Stories", Content: b.Artifacts.UserStories},
		{Group: artGroup, Title: "Process Diagrams", Content: b.Artifacts.ProcessDiagrams},
		{Group: artGroup, Title: "Leading Indicators", Content: b.Artifacts.LeadingIndicators},
	}
}

// Validate checks that every section carries text. Failures are ValidationErrors on the
// "documents" field.
func (b *DocumentBundle) Validate() error {
	if b == nil {
		return NewValidationError("documents", "documents are missing")
	}
	for _, s := range b.Sections() {
		if strings.TrimSpace(s.Content) == "" {
			return NewValidationError("documents", fmt.Sprintf("section %q is empty", s.Title))
		}
	}
	return nil
}
