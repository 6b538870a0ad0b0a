package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// pgQuerier is the subset of *pgxpool.Pool used by the order store.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Row is one result row keyed by column name.
type Row = map[string]any

// DefaultActiveStatuses are the order statuses considered active.
var DefaultActiveStatuses = []string{"aprovado", "pendente"}

// OrderFilter narrows OrdersForUser. Zero values mean "no bound".
type OrderFilter struct {
	MinDate  string // YYYY-MM-DD
	MaxDate  string // YYYY-MM-DD
	MinValue *float64
	MaxValue *float64
}

// OrderStore answers order and order-waste questions from PostgreSQL. Every
// query is scoped to the caller: as seller (fkentregador), buyer
// (fkrecebedor) or either.
type OrderStore struct {
	db pgQuerier
}

// NewOrderStore creates an order store.
func NewOrderStore(db pgQuerier) (*OrderStore, error) {
	if db == nil {
		return nil, errors.New("repository: postgres pool must not be nil")
	}
	return &OrderStore{db: db}, nil
}

// SellerOrders lists orders the caller sells, filtered by status.
func (s *OrderStore) SellerOrders(ctx context.Context, userID string, statuses []string) ([]Row, error) {
	const q = `
SELECT idpedido, agendamentocoleta, status, valortotal
FROM pedido
WHERE fkentregador = $1 AND status = ANY($2)
ORDER BY agendamentocoleta DESC`
	return s.query(ctx, "seller orders", q, userID, normalizeStatuses(statuses))
}

// OldestOpenOrder returns the oldest pending or approved order the caller sells.
func (s *OrderStore) OldestOpenOrder(ctx context.Context, userID string) ([]Row, error) {
	const q = `
SELECT idpedido, data, valortotal
FROM pedido
WHERE fkentregador = $1 AND status IN ('pendente', 'aprovado')
ORDER BY data ASC
LIMIT 1`
	return s.query(ctx, "oldest open order", q, userID)
}

// OrderTransport returns carrier and pickup date of an order the caller sells.
func (s *OrderStore) OrderTransport(ctx context.Context, userID string, orderID int64) ([]Row, error) {
	const q = `
SELECT t.transportadora, t.dataretirada
FROM transporte t
INNER JOIN pedido p ON t.fkpedido = p.idpedido
WHERE t.fkpedido = $1 AND p.fkentregador = $2`
	return s.query(ctx, "order transport", q, orderID, userID)
}

// BuyerOrders lists orders the caller buys, filtered by status.
func (s *OrderStore) BuyerOrders(ctx context.Context, userID string, statuses []string) ([]Row, error) {
	const q = `
SELECT idpedido, agendamentocoleta, status, valortotal, fkentregador AS vendedor
FROM pedido
WHERE fkrecebedor = $1 AND status = ANY($2)
ORDER BY agendamentocoleta DESC`
	return s.query(ctx, "buyer orders", q, userID, normalizeStatuses(statuses))
}

// OrdersForUser lists every order where the caller is seller or buyer.
func (s *OrderStore) OrdersForUser(ctx context.Context, userID string, f OrderFilter) ([]Row, error) {
	q, args := ordersForUserQuery(userID, f)
	return s.query(ctx, "orders for user", q, args...)
}

// OrderWasteItems lists the waste lines of an order the caller takes part in.
func (s *OrderStore) OrderWasteItems(ctx context.Context, userID string, orderID int64) ([]Row, error) {
	const q = `
SELECT rp.fkresiduo, rp.quantidaderesiduo, rp.pesocomprado, rp.tipounidade
FROM residuopedido rp
INNER JOIN pedido p ON rp.fkpedido = p.idpedido
WHERE rp.fkpedido = $1 AND (p.fkentregador = $2 OR p.fkrecebedor = $2)`
	return s.query(ctx, "order waste items", q, orderID, userID)
}

func ordersForUserQuery(userID string, f OrderFilter) (string, []any) {
	var b strings.Builder
	args := []any{userID}
	b.WriteString(`
SELECT idpedido, data, agendamentocoleta, status, valortotal, fkentregador, fkrecebedor
FROM pedido
WHERE (fkentregador = $1 OR fkrecebedor = $1)`)

	add := func(cond string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, " AND %s $%d", cond, len(args))
	}
	if f.MinDate != "" {
		add("data >=", f.MinDate)
	}
	if f.MaxDate != "" {
		add("data <=", f.MaxDate)
	}
	if f.MinValue != nil {
		add("valortotal >=", *f.MinValue)
	}
	if f.MaxValue != nil {
		add("valortotal <=", *f.MaxValue)
	}
	b.WriteString("\nORDER BY data DESC")
	return b.String(), args
}

func normalizeStatuses(statuses []string) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append(out, DefaultActiveStatuses...)
	}
	return out
}

func (s *OrderStore) query(ctx context.Context, name, sql string, args ...any) ([]Row, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: %s query: %w", name, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("repository: %s scan: %w", name, err)
	}
	return out, nil
}
