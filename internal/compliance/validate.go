package compliance

import (
	"context"
	"fmt"
)

// highSensitivityTemplates lists template categories that always require an
// explicit consent reference before a note may be created.
var highSensitivityTemplates = map[string]struct{}{
	"psychotherapy":    {},
	"psych_assessment": {},
	"mental_health":    {},
	"substance_abuse":  {},
	"crisis":           {},
}

// ValidationResult is the structured outcome of a note-creation validation.
// Callers decide whether to block on violations or merely surface warnings.
type ValidationResult struct {
	IsCompliant     bool     `json:"is_compliant"`
	Violations      []string `json:"violations"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// ValidateNoteCreation checks whether a note may be created by actorID for
// subjectID under templateID with the given consent reference. It returns a
// structured result rather than failing outright.
func (t *Tracker) ValidateNoteCreation(ctx context.Context, actorID, subjectID, templateID, consentID string) (*ValidationResult, error) {
	result := &ValidationResult{
		IsCompliant:     true,
		Violations:      []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	if _, sensitive := highSensitivityTemplates[templateID]; sensitive && consentID == "" {
		result.Violations = append(result.Violations,
			fmt.Sprintf("missing required consent for high-sensitivity template %q", templateID))
	}

	valid, err := t.creds.Valid(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !valid {
		result.Violations = append(result.Violations,
			fmt.Sprintf("actor %q lacks a currently valid professional credential", actorID))
	}

	if subjectID == "" {
		result.Warnings = append(result.Warnings, "no subject identifier supplied")
	}
	if consentID == "" {
		result.Recommendations = append(result.Recommendations,
			"record an explicit consent reference before the session")
	}

	result.IsCompliant = len(result.Violations) == 0
	return result, nil
}
