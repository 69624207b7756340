package deident

import (
	"fmt"
	"strings"

	"github.com/shimishnaByAndy/clinicalvault/internal/cryptox"
	"github.com/shimishnaByAndy/clinicalvault/internal/models"
)

// Deidentify runs the fixed detector pipeline for the given tier over text
// and returns the cleaned text together with the list of removed entities.
//
// The function is pure: token numbering restarts at 1 for every call and
// there is no state shared between calls. Replacement tokens have the form
// [CATEGORY_n]; the regional date generalization uses the unnumbered [DATE].
func Deidentify(text string, level Level) (models.DeidentificationResult, error) {
	rules := rulesFor(level)
	if rules == nil {
		return models.DeidentificationResult{}, fmt.Errorf("%w: %d", ErrUnknownLevel, int(level))
	}

	result := models.DeidentificationResult{
		OriginalHash:    cryptox.HashText(text),
		Level:           level.String(),
		RemovedEntities: []models.RemovedEntity{},
	}

	counters := make(map[string]int)

	cleaned := text
	for _, r := range rules {
		cleaned = r.re.ReplaceAllStringFunc(cleaned, func(match string) string {
			// Skip spans that are already replacement tokens from an
			// earlier pass.
			if strings.HasPrefix(match, "[") && strings.HasSuffix(match, "]") {
				return match
			}

			var replacement string
			if r.generalize {
				replacement = "[" + r.token + "]"
			} else {
				counters[r.token]++
				replacement = fmt.Sprintf("[%s_%d]", r.token, counters[r.token])
			}

			result.RemovedEntities = append(result.RemovedEntities, models.RemovedEntity{
				Category:    r.category,
				Original:    match,
				Replacement: replacement,
				Confidence:  r.confidence,
			})
			return replacement
		})
	}

	result.CleanedText = cleaned
	return result, nil
}

// VerifyCompliance re-runs the detectors of the given tier against
// already-processed text and reports whether any targeted category still
// matches. Used as a post-hoc gate before transmission. An unknown level is
// never compliant: a gate that cannot run its detectors must not pass.
func VerifyCompliance(text string, level Level) bool {
	rules := rulesFor(level)
	if rules == nil {
		return false
	}
	for _, r := range rules {
		for _, match := range r.re.FindAllString(text, -1) {
			if strings.HasPrefix(match, "[") && strings.HasSuffix(match, "]") {
				continue
			}
			return false
		}
	}
	return true
}
