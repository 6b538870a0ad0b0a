package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// fakeRows is a pgx.Rows over in-memory values.
type fakeRows struct {
	cols   []string
	values [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }
func (r *fakeRows) RawValues() [][]byte           { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.values) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.values[r.idx-1], nil }

func (r *fakeRows) Scan(dest ...any) error { return errors.New("fakeRows: Scan not supported") }

type fakeQuerier struct {
	rows     *fakeRows
	err      error
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL = sql
	q.lastArgs = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestNewOrderStore_NilPool(t *testing.T) {
	_, err := NewOrderStore(nil)
	require.Error(t, err)
}

func TestOrderStore_SellerOrdersMapsRows(t *testing.T) {
	rows := &fakeRows{
		cols:   []string{"idpedido", "status", "valortotal"},
		values: [][]any{{int64(123), "aprovado", 150.5}, {int64(124), "pendente", 80.0}},
	}
	q := &fakeQuerier{rows: rows}
	s, err := NewOrderStore(q)
	require.NoError(t, err)

	out, err := s.SellerOrders(context.Background(), "user_123", []string{" Pendente ", ""})
	require.NoError(t, err)
	require.Equal(t, []Row{
		{"idpedido": int64(123), "status": "aprovado", "valortotal": 150.5},
		{"idpedido": int64(124), "status": "pendente", "valortotal": 80.0},
	}, out)
	require.True(t, rows.closed)
	require.Contains(t, q.lastSQL, "fkentregador = $1")
	require.Equal(t, []any{"user_123", []string{"pendente"}}, q.lastArgs)
}

func TestOrderStore_DefaultStatuses(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	s, err := NewOrderStore(q)
	require.NoError(t, err)

	_, err = s.BuyerOrders(context.Background(), "user_123", nil)
	require.NoError(t, err)
	require.Contains(t, q.lastSQL, "fkrecebedor = $1")
	require.Equal(t, []any{"user_123", []string{"aprovado", "pendente"}}, q.lastArgs)
}

func TestOrderStore_OwnershipScopedLookups(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	s, err := NewOrderStore(q)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.OrderTransport(ctx, "user_123", 42)
	require.NoError(t, err)
	require.Contains(t, q.lastSQL, "p.fkentregador = $2")
	require.Equal(t, []any{int64(42), "user_123"}, q.lastArgs)

	q.rows = &fakeRows{}
	_, err = s.OrderWasteItems(ctx, "user_123", 42)
	require.NoError(t, err)
	require.Contains(t, q.lastSQL, "p.fkentregador = $2 OR p.fkrecebedor = $2")

	q.rows = &fakeRows{}
	_, err = s.OldestOpenOrder(ctx, "user_123")
	require.NoError(t, err)
	require.Contains(t, q.lastSQL, "LIMIT 1")
}

func TestOrdersForUserQuery(t *testing.T) {
	sql, args := ordersForUserQuery("u1", OrderFilter{})
	require.Contains(t, sql, "WHERE (fkentregador = $1 OR fkrecebedor = $1)\nORDER BY data DESC")
	require.Equal(t, []any{"u1"}, args)

	minV, maxV := 10.0, 99.9
	sql, args = ordersForUserQuery("u1", OrderFilter{MinDate: "2024-01-01", MaxDate: "2024-12-31", MinValue: &minV, MaxValue: &maxV})
	require.True(t, strings.Contains(sql, "AND data >= $2 AND data <= $3 AND valortotal >= $4 AND valortotal <= $5"), sql)
	require.Equal(t, []any{"u1", "2024-01-01", "2024-12-31", 10.0, 99.9}, args)

	_, args = ordersForUserQuery("u1", OrderFilter{MaxValue: &maxV})
	require.Equal(t, []any{"u1", 99.9}, args)
}

func TestOrderStore_QueryErrors(t *testing.T) {
	s, err := NewOrderStore(&fakeQuerier{err: errors.New("connection reset")})
	require.NoError(t, err)
	_, err = s.OrdersForUser(context.Background(), "u1", OrderFilter{})
	require.ErrorContains(t, err, "orders for user query: connection reset")

	s, err = NewOrderStore(&fakeQuerier{rows: &fakeRows{err: errors.New("canceled")}})
	require.NoError(t, err)
	_, err = s.OldestOpenOrder(context.Background(), "u1")
	require.ErrorContains(t, err, "oldest open order scan")
}
