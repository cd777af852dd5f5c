package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/alfredjeanlab/records/internal/idgen"
	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/payload"
)

// recordColumns is the column list used for SELECT and RETURNING clauses on
// the records table.
var recordColumns = []string{"id", "username", "payload", "created_at", "updated_at"}

// psql builds statements with PostgreSQL placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryCreateRecord inserts rec, assigning an ID when it has none, and fills
// in the timestamps the database chose.
func queryCreateRecord[M any](ctx context.Context, db executor, rec *model.Record[M]) error {
	if rec.ID == "" {
		id, err := idgen.NewRecordID()
		if err != nil {
			return err
		}
		rec.ID = id
	}

	raw, err := payload.Encode(rec.Payload)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert("records").
		Columns("id", "username", "payload").
		Values(rec.ID, rec.Username, string(raw)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := db.QueryRowContext(ctx, query, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// queryGetRecord loads one record. With forUpdate the row stays locked until
// the surrounding transaction ends.
func queryGetRecord[M any](ctx context.Context, db executor, id string, forUpdate bool) (*model.Record[M], error) {
	q := psql.Select(recordColumns...).From("records").Where(squirrel.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rec model.Record[M]
	if err := sqlscan.Get(ctx, db, &rec, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// queryUpdatePayload replaces the stored payload as a whole and returns the
// updated record.
func queryUpdatePayload[M any](ctx context.Context, db executor, id string, p payload.Payload[M]) (*model.Record[M], error) {
	raw, err := payload.Encode(p)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Update("records").
		Set("payload", string(raw)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(recordColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var rec model.Record[M]
	if err := sqlscan.Get(ctx, db, &rec, query, args...); err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// queryDeleteRecord locks and reads the record, then deletes it. It must run
// inside a transaction for the lock to hold.
func queryDeleteRecord[M any](ctx context.Context, db executor, id string) (*model.Record[M], error) {
	rec, err := queryGetRecord[M](ctx, db, id, true)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Delete("records").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, mapError(sql.ErrNoRows)
	}
	return rec, nil
}

// listQuery builds the filtered, ordered, unpaged SELECT for filter.
func listQuery(filter model.RecordFilter) squirrel.SelectBuilder {
	q := psql.Select(recordColumns...).From("records")

	if filter.Username != "" {
		q = q.Where(squirrel.Eq{"username": filter.Username})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"username": "%" + escapeLike(filter.Search) + "%"})
	}
	if filter.CreatedAfter != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.CreatedAfter})
	}
	if filter.CreatedBefore != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.CreatedBefore})
	}
	for _, k := range slices.Sorted(maps.Keys(filter.Data)) {
		q = q.Where("payload->'data'->>? = ?", k, filter.Data[k])
	}

	return q.OrderBy(parseSortClause(filter.Sort)...)
}

// parseSortClause turns "col" or "-col" into ORDER BY terms. Unknown columns
// fall back to newest first. id breaks ties so pages never overlap.
func parseSortClause(sort string) []string {
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"created_at": true, "updated_at": true, "username": true,
	}
	if !allowed[col] {
		col, desc = "created_at", true
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	return []string{col + dir, "id" + dir}
}

// escapeLike escapes LIKE metacharacters so s matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
