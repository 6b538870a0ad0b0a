package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"purpuria-agent/internal/repository"
)

// CatalogQueries reads a company's waste catalog.
type CatalogQueries interface {
	CompanyWaste(ctx context.Context, userID string) ([]bson.M, error)
}

// OrderWasteQueries reads the waste lines of an order.
type OrderWasteQueries interface {
	OrderWasteItems(ctx context.Context, userID string, orderID int64) ([]repository.Row, error)
}

// WasteTools builds the waste specialist toolset.
func WasteTools(catalog CatalogQueries, orders OrderWasteQueries) (*Set, error) {
	if catalog == nil {
		return nil, errors.New("tools: waste catalog must not be nil")
	}
	if orders == nil {
		return nil, errors.New("tools: order waste queries must not be nil")
	}
	return NewSet(
		Spec{
			Name:        "consultar_catalogo_residuos",
			Description: "Retorna o catálogo completo de resíduos cadastrados para a empresa do usuário.",
			Parameters:  objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, callerID string, _ json.RawMessage) (any, error) {
				waste, err := catalog.CompanyWaste(ctx, callerID)
				if errors.Is(err, repository.ErrCompanyNotFound) {
					return errorResult{Error: fmt.Sprintf("Nenhuma empresa encontrada para o ID: %s", callerID)}, nil
				}
				return waste, err
			},
		},
		Spec{
			Name:        "obter_residuos_de_pedido",
			Description: "Consulta os resíduos (fkResiduo, quantidade, peso, unidade) de um pedido do usuário.",
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
				return orders.OrderWasteItems(ctx, callerID, id)
			},
		},
	)
}
