package usecase

import (
	"strings"

	"purpuria-agent/internal/domain"
)

// Compose renders a specialist result in the fixed reply layout: the answer
// verbatim, then the optional recommendation and follow-up blocks.
func Compose(r domain.SpecialistResult) string {
	var b strings.Builder
	b.WriteString(r.ResponseText)
	if rec := strings.TrimSpace(r.Recommendation); rec != "" {
		b.WriteString("\n- *Recomendação*:\n")
		b.WriteString(rec)
	}
	if fu := strings.TrimSpace(r.FollowUp); fu != "" {
		b.WriteString("\n- *Acompanhamento*:\n")
		b.WriteString(fu)
	}
	return b.String()
}
