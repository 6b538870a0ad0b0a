package usecase

import (
	"fmt"
	"strings"

	"purpuria-agent/internal/domain"
)

type fewShot struct {
	user      string
	assistant string
}

var routerShots = []fewShot{
	{user: "Quais pedidos ativos eu tenho?", assistant: "ROUTE=pedidos\nPERGUNTA_ORIGINAL=Quais pedidos ativos eu tenho?\nCLARIFY="},
	{user: "Onde fica a sede da Purpura?", assistant: "ROUTE=duvidas_app\nPERGUNTA_ORIGINAL=Onde fica a sede da Purpura?\nCLARIFY="},
	{user: "Meus resíduos de plástico estão prontos?", assistant: "ROUTE=residuos\nPERGUNTA_ORIGINAL=Meus resíduos de plástico estão prontos?\nCLARIFY="},
	{user: "Me conta uma piada.", assistant: ReplyFallback},
}

var specialistShots = []fewShot{
	{
		user:      "ROUTE=pedidos\nPERGUNTA_ORIGINAL=Quais pedidos ativos eu tenho?\nCLARIFY=\nDADO_ANTERIOR=\nUSER_ID=user_123",
		assistant: `{"dominio":"pedidos","resposta":"Você tem 2 pedidos ativos: um para 15/01/2025 (pronto) e outro para 20/01/2025 (em preparo).","recomendacao":"Gostaria de detalhes de um deles?"}`,
	},
	{
		user:      "ROUTE=residuos\nPERGUNTA_ORIGINAL=Quais resíduos estão prontos para coleta?\nCLARIFY=\nDADO_ANTERIOR=\nUSER_ID=user_123",
		assistant: `{"dominio":"residuos","resposta":"Você tem 5kg de plástico e 2kg de metal prontos para coleta.","recomendacao":"Deseja agendar a coleta?"}`,
	},
}

func buildRouterMessages(question string, history []domain.Turn) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: routerPrompt()}}
	messages = appendShots(messages, routerShots)
	messages = append(messages, domain.ToChatMessages(history)...)
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: question})
}

func routerPrompt() string {
	return strings.Join([]string{
		"### PERSONA",
		"Você é o Roteador do PurPurIA. Decida a melhor rota (apenas uma) para a pergunta. Domínios: duvidas_app, pedidos, residuos.",
		"",
		"### REGRAS",
		"- Escolha apenas uma rota, mesmo quando a pergunta tocar mais de um domínio.",
		"- SE FOR FORA DE ESCOPO: responda diretamente ao usuário com uma frase educada e sugira um tema da Purpura. NÃO use o protocolo ROUTE=.",
		"- SE FOR DENTRO DE ESCOPO: use APENAS o protocolo abaixo e NÃO responda ao usuário.",
		"",
		"### PROTOCOLO DE ENCAMINHAMENTO (texto puro)",
		"ROUTE=<duvidas_app | pedidos | residuos>",
		"PERGUNTA_ORIGINAL=<mensagem completa do usuário, sem edições>",
		"CLARIFY=<pergunta mínima se precisar; senão deixe vazio>",
	}, "\n")
}

type specialistInput struct {
	domain        domain.Domain
	question      string
	clarification string
	callerID      string
	history       []domain.Turn
}

func buildSpecialistMessages(in specialistInput) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: specialistPrompt(in.domain)}}
	messages = appendShots(messages, specialistShots)
	messages = append(messages, domain.ToChatMessages(in.history)...)
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: specialistRequest(in)})
}

func specialistRequest(in specialistInput) string {
	return strings.Join([]string{
		"ROUTE=" + string(in.domain),
		"PERGUNTA_ORIGINAL=" + singleLine(in.question),
		"CLARIFY=" + singleLine(in.clarification),
		"DADO_ANTERIOR=",
		"USER_ID=" + in.callerID,
	}, "\n")
}

func specialistPrompt(d domain.Domain) string {
	return strings.Join([]string{
		"### OBJETIVO",
		fmt.Sprintf("Você é o Agente Especialista no domínio %s. Use a PERGUNTA_ORIGINAL e opere as ferramentas para gerar a resposta.", d),
		"A saída SEMPRE é um objeto JSON (contrato abaixo).",
		"",
		"### CONTEXTO",
		"O ID do usuário chega no campo USER_ID e as ferramentas já consultam os dados desse usuário.",
		"NUNCA pergunte ao usuário qual é o ID.",
		"",
		"### SEGURANÇA DE DADOS",
		"O campo resposta contém apenas o que o usuário vê no aplicativo (status, data, tipo de resíduo, peso).",
		"NUNCA inclua IDs de pedido (#123) ou outras chaves; use a data ou o status como referência.",
		"",
		"### SAÍDA (JSON)",
		fmt.Sprintf("- dominio: %q", d),
		"- resposta: uma frase objetiva com a informação principal, sem IDs de pedido.",
		"- recomendacao: ação prática (string vazia se não houver).",
		"- acompanhamento: opcional, texto curto de próximo passo.",
	}, "\n")
}

type validatorInput struct {
	question string
	route    string
	context  string
	reply    string
	history  []domain.Turn
}

func buildValidatorMessages(in validatorInput) []domain.ChatMessage {
	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: validatorPrompt()}}
	messages = append(messages, domain.ToChatMessages(in.history)...)
	return append(messages, domain.ChatMessage{
		Role: domain.RoleUser,
		Content: strings.Join([]string{
			"PERGUNTA_ORIGINAL: " + in.question,
			"ROTA_USADA: " + in.route,
			"CONTEXTO_ESPECIALISTA: " + in.context,
			"RESPOSTA_FINAL: " + in.reply,
		}, "\n"),
	})
}

func validatorPrompt() string {
	return strings.Join([]string{
		"### PAPEL",
		"Você é o Agente Juiz/Validador do PurPurIA. Garanta que a resposta final seja coerente, completa e apropriada à pergunta, à rota e ao contexto do especialista.",
		"",
		"### REGRAS DE VALIDAÇÃO",
		"1) Coerência: a resposta final deve estar alinhada com PERGUNTA_ORIGINAL e CONTEXTO_ESPECIALISTA.",
		"2) Formato: a frase inicial e as seções - *Recomendação* e - *Acompanhamento* devem permanecer intactas.",
		"3) Completude: a resposta deve atender a pergunta do usuário.",
		"",
		"### SAÍDA",
		"- Se a resposta estiver validada, retorne EXATAMENTE a RESPOSTA_FINAL, sem alterações nem comentários.",
		"- Caso contrário, reescreva o mínimo necessário para corrigir o problema, mantendo o formato recebido.",
	}, "\n")
}

func appendShots(messages []domain.ChatMessage, shots []fewShot) []domain.ChatMessage {
	for _, s := range shots {
		messages = append(messages,
			domain.ChatMessage{Role: domain.RoleUser, Content: s.user},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: s.assistant},
		)
	}
	return messages
}

// recentTurns keeps the newest max turns.
func recentTurns(turns []domain.Turn, max int) []domain.Turn {
	if max <= 0 || len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripCodeFence removes a surrounding ``` block (with optional language tag).
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{[ ") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
