package domain

// SpecialistResult is the structured answer a specialist hands to the
// composer. ResponseText never carries internal identifiers.
type SpecialistResult struct {
	Domain         Domain `json:"dominio"`
	ResponseText   string `json:"resposta"`
	Recommendation string `json:"recomendacao,omitempty"`
	FollowUp       string `json:"acompanhamento,omitempty"`
}
