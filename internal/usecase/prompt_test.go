package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"purpuria-agent/internal/domain"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"texto simples":           "texto simples",
	}
	for in, want := range cases {
		require.Equal(t, want, stripCodeFence(in), in)
	}
}

func TestRecentTurns(t *testing.T) {
	turns := []domain.Turn{domain.UserTurn("1"), domain.AssistantTurn("2"), domain.UserTurn("3")}
	require.Equal(t, turns[1:], recentTurns(turns, 2))
	require.Equal(t, turns, recentTurns(turns, 10))
	require.Equal(t, turns, recentTurns(turns, 0))
}

func TestSpecialistRequest_FlattensMultilineQuestion(t *testing.T) {
	got := specialistRequest(specialistInput{
		domain:   domain.DomainWaste,
		question: "Meus resíduos\nestão prontos?",
		callerID: "user_123",
	})
	require.Equal(t, "ROUTE=residuos\nPERGUNTA_ORIGINAL=Meus resíduos estão prontos?\nCLARIFY=\nDADO_ANTERIOR=\nUSER_ID=user_123", got)
}
