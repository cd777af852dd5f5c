package page

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/records/internal/payload"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		db.Close()
	})
	return db, mock
}

type item struct {
	ID string `db:"id"`
	N  int    `db:"n"`
}

type note struct {
	Text string `json:"text"`
}

type withPayload struct {
	ID      string                `db:"id"`
	Payload payload.Payload[note] `db:"payload"`
}

func itemsQuery() squirrel.SelectBuilder {
	return squirrel.Select("id", "n").
		From("items").
		Where(squirrel.Gt{"n": 0}).
		OrderBy("n DESC").
		PlaceholderFormat(squirrel.Dollar)
}

// itemRows returns rows with n = from, from-1, ... for count rows.
func itemRows(from, count int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "n"})
	for i := 0; i < count; i++ {
		n := from - i
		rows.AddRow(fmt.Sprintf("it-%d", n), n)
	}
	return rows
}

const (
	countPattern = `SELECT COUNT\(\*\) FROM \(SELECT id, n FROM items WHERE n > \$1 ORDER BY n DESC\) AS counted`
	fetchPattern = `SELECT id, n FROM items WHERE n > \$1 ORDER BY n DESC LIMIT %d OFFSET %d`
)

func expectCount(mock sqlmock.Sqlmock, total int) {
	mock.ExpectQuery(countPattern).WithArgs(0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(total))
}

func expectFetch(mock sqlmock.Sqlmock, limit, offset int, rows *sqlmock.Rows) {
	mock.ExpectQuery(fmt.Sprintf(fetchPattern, limit, offset)).WithArgs(0).WillReturnRows(rows)
}

func intPtr(n int) *int { return &n }

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		name     string
		params   Params
		wantPage int
		wantSize int
		wantErr  bool
	}{
		{"Defaults", Params{}, 1, DefaultPageSize, false},
		{"Explicit", Of(3, 25), 3, 25, false},
		{"ZeroPage", Params{Page: intPtr(0)}, 1, DefaultPageSize, false},
		{"NegativePage", Params{Page: intPtr(-4), PageSize: intPtr(5)}, 1, 5, false},
		{"ZeroSize", Params{PageSize: intPtr(0)}, 0, 0, true},
		{"NegativeSize", Params{PageSize: intPtr(-1)}, 0, 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page, size, err := tc.params.Normalize()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantSize, size)
		})
	}
}

func TestTotalPages(t *testing.T) {
	for _, tc := range []struct {
		count int64
		size  int
		want  int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{30, 10, 3},
		{7, 1, 7},
	} {
		assert.Equal(t, tc.want, TotalPages(tc.count, tc.size), "TotalPages(%d, %d)", tc.count, tc.size)
	}
}

func TestPaginate_Pages(t *testing.T) {
	for _, tc := range []struct {
		name      string
		page      int
		wantRows  int
		wantFirst int
	}{
		{"FirstPage", 1, 10, 25},
		{"MiddlePage", 2, 10, 15},
		{"LastPartialPage", 3, 5, 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectBegin()
			expectCount(mock, 25)
			expectFetch(mock, 10, (tc.page-1)*10, itemRows(tc.wantFirst, tc.wantRows))
			mock.ExpectCommit()

			res, err := Paginate[item](context.Background(), db, itemsQuery(), Of(tc.page, 10))
			require.NoError(t, err)
			assert.Equal(t, int64(25), res.TotalCount)
			assert.Equal(t, int64(3), res.TotalPages)
			assert.Equal(t, tc.page, res.Page)
			assert.Equal(t, 10, res.PageSize)
			require.Len(t, res.Items, tc.wantRows)
			assert.Equal(t, tc.wantFirst, res.Items[0].N)
			for i := 1; i < len(res.Items); i++ {
				assert.Greater(t, res.Items[i-1].N, res.Items[i].N, "page order must follow ORDER BY")
			}
		})
	}
}

func TestPaginate_BeyondLastPage(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 25)
	mock.ExpectCommit()

	res, err := Paginate[item](context.Background(), db, itemsQuery(), Of(4, 10))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Equal(t, int64(25), res.TotalCount)
	assert.Equal(t, int64(3), res.TotalPages)
}

func TestPaginate_NoRows(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 0)
	mock.ExpectCommit()

	res, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int64(0), res.TotalCount)
	assert.Equal(t, int64(0), res.TotalPages)
	assert.Equal(t, 1, res.Page)
}

func TestPaginate_Defaults(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 12)
	expectFetch(mock, DefaultPageSize, 0, itemRows(12, DefaultPageSize))
	mock.ExpectCommit()

	res, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, DefaultPageSize, res.PageSize)
	assert.Equal(t, int64(2), res.TotalPages)
	assert.Len(t, res.Items, DefaultPageSize)
}

func TestPaginate_ReplacesCallerLimit(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 3)
	expectFetch(mock, 2, 2, itemRows(1, 1))
	mock.ExpectCommit()

	q := itemsQuery().Limit(500).Offset(7)
	res, err := Paginate[item](context.Background(), db, q, Of(2, 2))
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestPaginate_InvalidPageSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			// No expectations: any statement would fail the test.
			db, _ := newMockDB(t)
			res, err := Paginate[item](context.Background(), db, itemsQuery(), Params{PageSize: &size})
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, res)
		})
	}
}

func TestPaginate_BeginError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "begin", se.Op)
}

func TestPaginate_CountError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("relation does not exist")
	mock.ExpectBegin()
	mock.ExpectQuery(countPattern).WithArgs(0).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "count", se.Op)
	assert.ErrorIs(t, err, boom)
}

func TestPaginate_FetchError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("canceling statement due to statement timeout")
	mock.ExpectBegin()
	expectCount(mock, 4)
	mock.ExpectQuery(fmt.Sprintf(fetchPattern, 10, 0)).WithArgs(0).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch", se.Op)
	assert.ErrorIs(t, err, boom)
}

func TestPaginate_CommitError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 0)
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	_, err := Paginate[item](context.Background(), db, itemsQuery(), Params{})
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "commit", se.Op)
}

// explosive panics when a row is scanned into it.
type explosive struct{}

func (*explosive) Scan(any) error { panic("scan exploded") }

func TestPaginate_PanicReleasesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	q := squirrel.Select("id", "v").From("bombs").OrderBy("id").PlaceholderFormat(squirrel.Dollar)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(SELECT id, v FROM bombs ORDER BY id\) AS counted`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, v FROM bombs ORDER BY id LIMIT 10 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "v"}).AddRow("b-1", "x"))
	mock.ExpectRollback()

	type bomb struct {
		ID string    `db:"id"`
		V  explosive `db:"v"`
	}
	assert.PanicsWithValue(t, "scan exploded", func() {
		_, _ = Paginate[bomb](context.Background(), db, q, Params{})
	})
}

func TestPaginate_BadRowFailsPage(t *testing.T) {
	db, mock := newMockDB(t)
	q := squirrel.Select("id", "payload").From("notes").OrderBy("id").PlaceholderFormat(squirrel.Dollar)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(SELECT id, payload FROM notes ORDER BY id\) AS counted`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT id, payload FROM notes ORDER BY id LIMIT 10 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload"}).
			AddRow("n-1", []byte(`{"meta":{"text":"ok"},"data":null}`)).
			AddRow("n-2", []byte(`{"meta":{"value":"other shape"},"data":null}`)))
	mock.ExpectRollback()

	res, err := Paginate[withPayload](context.Background(), db, q, Params{})
	assert.Nil(t, res)

	var re *RowError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Index)
	assert.ErrorIs(t, err, payload.ErrSchemaMismatch)
}

func TestPaginate_DecodesPayloads(t *testing.T) {
	db, mock := newMockDB(t)
	q := squirrel.Select("id", "payload").From("notes").OrderBy("id").PlaceholderFormat(squirrel.Dollar)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, payload FROM notes ORDER BY id LIMIT 10 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload"}).
			AddRow("n-1", `{"meta":{"text":"ok"},"data":{"k":"v"}}`))
	mock.ExpectCommit()

	res, err := Paginate[withPayload](context.Background(), db, q, Params{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "ok", res.Items[0].Payload.Meta.Text)
	assert.Equal(t, map[string]string{"k": "v"}, res.Items[0].Payload.Data)
}

func TestPaginateTx_UsesCallerTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	expectCount(mock, 1)
	expectFetch(mock, 10, 0, itemRows(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	res, err := PaginateTx[item](context.Background(), tx, itemsQuery(), Params{})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Len(t, res.Items, 1)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, &StoreError{Op: "count", Err: cause}, cause)
	assert.ErrorIs(t, &RowError{Index: 2, Err: cause}, cause)
	assert.Contains(t, (&RowError{Index: 2, Err: cause}).Error(), "row 2")
	assert.Contains(t, (&StoreError{Op: "fetch", Err: cause}).Error(), "fetch")
}
