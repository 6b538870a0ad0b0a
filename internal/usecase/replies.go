package usecase

// Fixed user-facing texts.
const (
	ReplyInputRefused  = "Desculpe, a pergunta toca em um tópico fora do meu escopo e/ou é inapropriada para este canal de suporte. Por favor, reformule sua questão sobre resíduos, pedidos ou dúvidas do aplicativo PurPurIA."
	ReplyOutputRefused = "Houve uma falha na geração da resposta. Por favor, tente novamente mais tarde."
	ReplyUpstream      = "Não foi possível processar sua mensagem agora. Por favor, tente novamente em instantes."
	ReplyEmptyMessage  = "Não recebi nenhuma mensagem. Como posso ajudar com seus resíduos, pedidos ou dúvidas do aplicativo?"
	ReplyFallback      = "Consigo ajudar apenas com questões da Purpura. Quer saber mais sobre reciclagem ou checar seu último pedido?"

	replyMessageTooLong   = "Sua mensagem é muito longa. Por favor, resuma sua dúvida em até %d caracteres."
	replyUnknownRoute     = "Erro: Rota '%s' não mapeada para um agente especialista."
	replyMalformedPayload = "Erro interno: O agente especialista '%s' retornou um JSON inválido. Saída: %s"
)
