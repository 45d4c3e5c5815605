package analysisapi

import (
	"fmt"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

// biopsyThreshold: above this confidence the fallback recommends a biopsy.
const biopsyThreshold = 0.8

// FallbackAdvisory is synthesized locally when the advisory call fails.
func FallbackAdvisory(label string, confidence float64) domain.AdvisoryResult {
	next := "Monitor for changes and re-assess."
	if confidence > biopsyThreshold {
		next = "Consult a dermatologist for a biopsy."
	}
	return domain.AdvisoryResult{
		Title:      fmt.Sprintf("Assessment: %s", label),
		Summary:    fmt.Sprintf("The AI model has identified patterns consistent with %s.", label),
		NextSteps:  next,
		Prevention: "Monitor the area for changes and protect it from sun exposure.",
		Disclaimer: "This is an AI-generated assessment and not a medical diagnosis.",
	}
}
