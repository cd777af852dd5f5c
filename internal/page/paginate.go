package page

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is satisfied by *sql.DB and *sql.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SnapshotTxOptions pins every statement of a transaction to the snapshot
// taken by its first statement.
var SnapshotTxOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Paginate runs q one page at a time inside a read-only repeatable-read
// transaction, so the count and the page always describe the same data.
// The transaction holds one pooled connection and is released on every
// exit path, including panics and context cancellation.
func Paginate[T any](ctx context.Context, db TxBeginner, q squirrel.SelectBuilder, params Params) (*Result[T], error) {
	if _, _, err := params.Normalize(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, SnapshotTxOptions)
	if err != nil {
		return nil, &StoreError{Op: "begin", Err: err}
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback() }()

	res, err := PaginateTx[T](ctx, tx, q, params)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, &StoreError{Op: "commit", Err: err}
	}
	return res, nil
}

// PaginateTx is Paginate for callers that already hold a transaction. The
// count and the page are only mutually consistent if that transaction reads
// from a single snapshot.
//
// q must carry its filters and ORDER BY; any LIMIT or OFFSET on it is
// replaced. Rows are mapped onto T by column name.
func PaginateTx[T any](ctx context.Context, db Querier, q squirrel.SelectBuilder, params Params) (*Result[T], error) {
	pageNum, size, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	base := q.RemoveLimit().RemoveOffset()

	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		FromSelect(base, "counted").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, &StoreError{Op: "count", Err: err}
	}

	res := &Result[T]{
		Items:      []T{},
		Page:       pageNum,
		PageSize:   size,
		TotalCount: total,
		TotalPages: TotalPages(total, size),
	}

	// Past the last page there is nothing to fetch.
	if int64(pageNum) > res.TotalPages {
		return res, nil
	}

	fetchSQL, fetchArgs, err := base.
		Limit(uint64(size)).
		Offset(uint64(pageNum-1) * uint64(size)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build page query: %w", err)
	}

	rows, err := db.QueryContext(ctx, fetchSQL, fetchArgs...)
	if err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}
	defer rows.Close()

	scanner := sqlscan.NewRowScanner(rows)
	for i := 0; rows.Next(); i++ {
		var item T
		if err := scanner.Scan(&item); err != nil {
			return nil, &RowError{Index: i, Err: err}
		}
		res.Items = append(res.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "fetch", Err: err}
	}

	return res, nil
}
