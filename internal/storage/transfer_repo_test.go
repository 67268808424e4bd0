package storage

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/better-wallet/walletd/pkg/types"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements and serves canned rows
type fakeDB struct {
	execs    []execCall
	affected int64
	execErr  error
	rows     [][]any
	queryErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if strings.Contains(sql, "INSERT") {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE " + strconv.FormatInt(f.affected, 10)), nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: f.rows[0]}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return fakeRow{values: r.rows[r.idx]}.Scan(dest...) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func strPtr(s string) *string { return &s }

func transferRow(id uuid.UUID, hash *string, status types.TxStatus) []any {
	chainID := int64(1)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{
		id, &chainID, "0xFrom", "0xTo", "0xToken", "10.00",
		hash, string(status), (*string)(nil), (*string)(nil), now, now,
	}
}

func TestTransferRepository_Create(t *testing.T) {
	db := &fakeDB{}
	repo := NewTransferRepository(db)
	chainID := int64(1)

	tr := &Transfer{
		ID:           uuid.New(),
		ChainID:      &chainID,
		FromAddress:  "0xFrom",
		Recipient:    "0xTo",
		TokenAddress: "0xToken",
		Amount:       "10.00",
		Status:       types.TxStatusAwaitingSignature,
	}
	require.NoError(t, repo.Create(context.Background(), tr))

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO transfers")
	assert.Equal(t, tr.ID, db.execs[0].args[0])
	assert.Equal(t, "awaiting_signature", db.execs[0].args[7])
}

func TestTransferRepository_CreateError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection reset")}
	repo := NewTransferRepository(db)

	err := repo.Create(context.Background(), &Transfer{ID: uuid.New()})
	assert.ErrorContains(t, err, "failed to create transfer")
}

func TestTransferRepository_MarkStatus(t *testing.T) {
	t.Run("updates row", func(t *testing.T) {
		db := &fakeDB{affected: 1}
		repo := NewTransferRepository(db)
		id := uuid.New()

		err := repo.MarkStatus(context.Background(), id, types.TxStatusFailed, strPtr("timeout"), strPtr("status unknown"))
		require.NoError(t, err)
		require.Len(t, db.execs, 1)
		assert.Equal(t, []any{id, "failed", strPtr("timeout"), strPtr("status unknown")}, db.execs[0].args)
	})

	t.Run("missing row", func(t *testing.T) {
		db := &fakeDB{affected: 0}
		repo := NewTransferRepository(db)

		err := repo.MarkStatus(context.Background(), uuid.New(), types.TxStatusConfirmed, nil, nil)
		assert.ErrorContains(t, err, "not found")
	})
}

func TestTransferRepository_MarkSubmitted(t *testing.T) {
	db := &fakeDB{affected: 1}
	repo := NewTransferRepository(db)
	id := uuid.New()

	require.NoError(t, repo.MarkSubmitted(context.Background(), id, "0xabc"))
	assert.Equal(t, []any{id, "submitted", "0xabc"}, db.execs[0].args)
}

func TestTransferRepository_GetByHash(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		id := uuid.New()
		db := &fakeDB{rows: [][]any{transferRow(id, strPtr("0xabc"), types.TxStatusConfirmed)}}
		repo := NewTransferRepository(db)

		tr, err := repo.GetByHash(context.Background(), "0xabc")
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Equal(t, id, tr.ID)
		assert.Equal(t, types.TxStatusConfirmed, tr.Status)
		assert.Equal(t, "0xabc", *tr.TxHash)
		assert.Nil(t, tr.ErrorCode)
	})

	t.Run("missing", func(t *testing.T) {
		repo := NewTransferRepository(&fakeDB{})

		tr, err := repo.GetByHash(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Nil(t, tr)
	})
}

func TestTransferRepository_ListByAddress(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		transferRow(uuid.New(), strPtr("0x1"), types.TxStatusConfirmed),
		transferRow(uuid.New(), nil, types.TxStatusFailed),
	}}
	repo := NewTransferRepository(db)

	transfers, err := repo.ListByAddress(context.Background(), "0xFrom", 0)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Nil(t, transfers[1].TxHash)
	assert.Equal(t, types.TxStatusFailed, transfers[1].Status)
}
