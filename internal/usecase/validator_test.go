package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"purpuria-agent/internal/domain"
)

func TestLLMValidator_DirectReplyUsesSentinels(t *testing.T) {
	llm := &mockLLM{responses: []chatResponse{{answer: ReplyFallback}}}
	v, err := NewLLMValidator(llm, domain.ModelConfig{Name: "gemini-2.0-flash"})
	require.NoError(t, err)

	out, err := v.Validate(context.Background(), ValidationRequest{Question: "Me conta uma piada.", Reply: ReplyFallback})
	require.NoError(t, err)
	require.Equal(t, ReplyFallback, out)

	last := llm.messages[0][len(llm.messages[0])-1]
	require.Contains(t, last.Content, "PERGUNTA_ORIGINAL: Me conta uma piada.")
	require.Contains(t, last.Content, "ROTA_USADA: fora_escopo")
	require.Contains(t, last.Content, "CONTEXTO_ESPECIALISTA: N/A - Rota Direta")
	require.Contains(t, last.Content, "RESPOSTA_FINAL: "+ReplyFallback)
}

func TestLLMValidator_SpecialistContext(t *testing.T) {
	llm := &mockLLM{responses: []chatResponse{{answer: "```\nVocê tem 2 pedidos ativos.\n```"}}}
	v, err := NewLLMValidator(llm, domain.ModelConfig{})
	require.NoError(t, err)

	result := domain.SpecialistResult{Domain: domain.DomainOrders, ResponseText: "Você tem 2 pedidos ativos."}
	out, err := v.Validate(context.Background(), ValidationRequest{
		Question: "Quais pedidos ativos eu tenho?",
		Route:    domain.DomainOrders,
		Result:   &result,
		Reply:    Compose(result),
		History:  []domain.Turn{domain.UserTurn("oi")},
	})
	require.NoError(t, err)
	require.Equal(t, "Você tem 2 pedidos ativos.", out)

	msgs := llm.messages[0]
	require.Len(t, msgs, 3)
	require.Contains(t, msgs[2].Content, "ROTA_USADA: pedidos")
	require.Contains(t, msgs[2].Content, `CONTEXTO_ESPECIALISTA: {"dominio":"pedidos","resposta":"Você tem 2 pedidos ativos."}`)
}

func TestLLMValidator_EmptyVerdictApproves(t *testing.T) {
	v, err := NewLLMValidator(&mockLLM{responses: []chatResponse{{answer: "  "}}}, domain.ModelConfig{})
	require.NoError(t, err)
	out, err := v.Validate(context.Background(), ValidationRequest{Reply: "resposta"})
	require.NoError(t, err)
	require.Equal(t, "resposta", out)
}

func TestLLMValidator_GenerationError(t *testing.T) {
	v, err := NewLLMValidator(&mockLLM{responses: []chatResponse{{err: errors.New("unavailable")}}}, domain.ModelConfig{})
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), ValidationRequest{Reply: "resposta"})
	require.ErrorContains(t, err, "unavailable")
}
