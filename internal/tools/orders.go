package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"purpuria-agent/internal/repository"
)

// OrderQueries is the order data capability used by the orders specialist.
type OrderQueries interface {
	SellerOrders(ctx context.Context, userID string, statuses []string) ([]repository.Row, error)
	OldestOpenOrder(ctx context.Context, userID string) ([]repository.Row, error)
	OrderTransport(ctx context.Context, userID string, orderID int64) ([]repository.Row, error)
	BuyerOrders(ctx context.Context, userID string, statuses []string) ([]repository.Row, error)
	OrdersForUser(ctx context.Context, userID string, f repository.OrderFilter) ([]repository.Row, error)
}

var statusParam = map[string]any{
	"type":        "string",
	"description": "Status dos pedidos ('pendente', 'aprovado', 'concluído', 'cancelado'), separados por vírgula. Padrão: 'aprovado,pendente'.",
}

var orderIDParam = map[string]any{
	"type":        "integer",
	"description": "O ID do pedido (idPedido) obtido de outra ferramenta.",
}

type statusArgs struct {
	Status string `json:"status"`
}

type orderIDArgs struct {
	OrderID json.Number `json:"pedido_id"`
}

func (a orderIDArgs) id() (int64, error) {
	if a.OrderID == "" {
		return 0, errors.New("pedido_id é obrigatório")
	}
	id, err := a.OrderID.Int64()
	if err != nil {
		return 0, fmt.Errorf("pedido_id inválido: %w", err)
	}
	return id, nil
}

type generalArgs struct {
	MinDate  string   `json:"min_data"`
	MaxDate  string   `json:"max_data"`
	MinValue *float64 `json:"min_valor"`
	MaxValue *float64 `json:"max_valor"`
}

// OrderTools builds the orders specialist toolset.
func OrderTools(q OrderQueries) (*Set, error) {
	if q == nil {
		return nil, errors.New("tools: order queries must not be nil")
	}
	return NewSet(
		Spec{
			Name:        "consultar_pedidos_usuario",
			Description: "Busca os pedidos ATIVOS em que o usuário é o VENDEDOR, filtrando por status. Retorna idPedido, status, agendamentoColeta e valorTotal.",
			Parameters:  objectSchema(map[string]any{"status": statusParam}),
			Handler: func(ctx context.Context, callerID string, args json.RawMessage) (any, error) {
				var a statusArgs
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.SellerOrders(ctx, callerID, splitStatuses(a.Status))
			},
		},
		Spec{
			Name:        "obter_pedido_mais_antigo",
			Description: "Retorna o ID, a data e o valor do pedido mais antigo com status 'pendente' ou 'aprovado' em que o usuário é o VENDEDOR.",
			Parameters:  objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, callerID string, _ json.RawMessage) (any, error) {
				return q.OldestOpenOrder(ctx, callerID)
			},
		},
		Spec{
			Name:        "consultar_transporte_pedido",
			Description: "Consulta a transportadora e a data de retirada de um pedido do usuário (VENDEDOR).",
			Parameters:  objectSchema(map[string]any{"pedido_id": orderIDParam}, "pedido_id"),
			Handler: func(ctx context.Context, callerID string, args json.RawMessage) (any, error) {
				var a orderIDArgs
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				id, err := a.id()
				if err != nil {
					return nil, err
				}
				return q.OrderTransport(ctx, callerID, id)
			},
		},
		Spec{
			Name:        "consultar_pedidos_comprados",
			Description: "Busca os pedidos ATIVOS em que o usuário é o COMPRADOR, filtrando por status. Inclui o vendedor de cada pedido.",
			Parameters:  objectSchema(map[string]any{"status": statusParam}),
			Handler: func(ctx context.Context, callerID string, args json.RawMessage) (any, error) {
				var a statusArgs
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.BuyerOrders(ctx, callerID, splitStatuses(a.Status))
			},
		},
		Spec{
			Name:        "consultar_pedidos_geral",
			Description: "Consulta todos os pedidos do usuário (VENDEDOR ou COMPRADOR), com filtros opcionais de intervalo de DATA (YYYY-MM-DD) e de VALOR.",
			Parameters: objectSchema(map[string]any{
				"min_data":  map[string]any{"type": "string", "description": "Data mínima (YYYY-MM-DD)."},
				"max_data":  map[string]any{"type": "string", "description": "Data máxima (YYYY-MM-DD)."},
				"min_valor": map[string]any{"type": "number", "description": "Valor mínimo do pedido."},
				"max_valor": map[string]any{"type": "number", "description": "Valor máximo do pedido."},
			}),
			Handler: func(ctx context.Context, callerID string, args json.RawMessage) (any, error) {
				var a generalArgs
				if err := decodeArgs(args, &a); err != nil {
					return nil, err
				}
				return q.OrdersForUser(ctx, callerID, repository.OrderFilter{
					MinDate:  strings.TrimSpace(a.MinDate),
					MaxDate:  strings.TrimSpace(a.MaxDate),
					MinValue: a.MinValue,
					MaxValue: a.MaxValue,
				})
			},
		},
	)
}
